package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/cart"
	"github.com/marchelocal/marketplace/internal/catalog"
	"github.com/marchelocal/marketplace/internal/models"
	"github.com/marchelocal/marketplace/internal/notify"
	"github.com/marchelocal/marketplace/internal/order"
)

var testJWTSecret = []byte("test_secret")

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB

	Auth          *AuthHandler
	Cart          *CartHandler
	Orders        *OrderHandler
	Notifications *NotificationHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Shop{}, &models.Product{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)

	env := &testEnv{
		T:  t,
		E:  echo.New(),
		DB: db,
	}

	env.Auth = &AuthHandler{DB: db, JWTSecret: testJWTSecret}

	env.Cart = &CartHandler{
		Service: &cart.Service{
			Repo:     &cart.GormRepo{DB: db},
			Products: &catalog.Products{DB: db},
		},
		JWTSecret: testJWTSecret,
	}

	env.Orders = &OrderHandler{
		Service: &order.Service{
			Repo:  &order.GormRepo{DB: db},
			Shops: &catalog.Shops{DB: db},
			Config: order.Config{
				TaxRate:               decimal.NewFromFloat(0.20),
				BaseDeliveryFee:       decimal.NewFromInt(5),
				FreeDeliveryThreshold: decimal.NewFromInt(50),
			},
		},
		JWTSecret: testJWTSecret,
	}

	env.Notifications = &NotificationHandler{
		Outbox:    &notify.Outbox{DB: db},
		JWTSecret: testJWTSecret,
	}

	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// login registers a fresh user and returns their id plus the issued access
// cookie.
func login(t *testing.T, env *testEnv) (models.User, *http.Cookie) {
	payload := map[string]string{
		"username": "username",
		"password": "password123",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", payload)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "accessToken" {
			return user, ck
		}
	}
	t.Fatal("no accessToken cookie issued")
	return models.User{}, nil
}

func seedShop(t *testing.T, env *testEnv) models.Shop {
	shop := models.Shop{
		Name:    "Ferme du Moulin",
		Slug:    "ferme-du-moulin",
		OwnerID: mustCreateUser(t, env, "shop_owner").ID,
	}
	require.NoError(t, env.DB.Create(&shop).Error)
	return shop
}

func mustCreateUser(t *testing.T, env *testEnv, username string) models.User {
	u := models.User{Username: username, PasswordHash: "x", Role: "shop_owner"}
	require.NoError(t, env.DB.Create(&u).Error)
	return u
}

func seedProduct(t *testing.T, env *testEnv, shopID uuid.UUID, price float64, quantity int) models.Product {
	p := models.Product{
		ShopID:   shopID,
		Name:     "Goat cheese",
		Price:    decimal.NewFromFloat(price),
		Quantity: quantity,
		Status:   models.ProductStatusActive,
	}
	require.NoError(t, env.DB.Create(&p).Error)
	return p
}
