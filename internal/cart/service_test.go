package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/catalog"
	"github.com/marchelocal/marketplace/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Cart{}, &models.CartItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := initTestDB(t)
	svc := &Service{
		Repo:     &GormRepo{DB: db},
		Products: &catalog.Products{DB: db},
	}
	return svc, db
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, quantity int, status string) models.Product {
	p := models.Product{
		Name:     "Tomatoes",
		Price:    decimal.NewFromFloat(price),
		Quantity: quantity,
		Status:   status,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func requireTotalInvariant(t *testing.T, c *models.Cart) {
	t.Helper()
	want := decimal.Zero
	for _, item := range c.Items {
		want = want.Add(item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	want = want.Add(c.DeliveryFee)
	require.True(t, c.TotalAmount.Equal(want), "total %s != %s", c.TotalAmount, want)
}

func TestGetOrCreateCreatesEmptyCart(t *testing.T) {
	svc, _ := newService(t)
	userID := uuid.New()

	c, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, userID, c.UserID)
	require.Empty(t, c.Items)
	require.True(t, c.TotalAmount.IsZero())
	require.True(t, c.DeliveryFee.IsZero())

	again, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, c.ID, again.ID)
}

func TestAddItemComputesTotal(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 2.50, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 3, nil)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 3, c.Items[0].Quantity)
	require.True(t, c.Items[0].PriceAtAdd.Equal(decimal.NewFromFloat(2.50)))
	require.True(t, c.TotalAmount.Equal(decimal.NewFromFloat(7.50)))
	requireTotalInvariant(t, c)
}

func TestAddItemSameVariantsSumsQuantities(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 2, map[string]string{"size": "L"})
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), userID, p.ID, 3, map[string]string{"size": "L"})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	require.Equal(t, 5, c.Items[0].Quantity)
	requireTotalInvariant(t, c)
}

func TestAddItemDifferentVariantsCreatesDistinctItems(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 1, map[string]string{"size": "L"})
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), userID, p.ID, 1, map[string]string{"size": "M"})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	requireTotalInvariant(t, c)
}

func TestAddItemNilAndEmptyVariantsAreTheSame(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 1, nil)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), userID, p.ID, 1, map[string]string{})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	require.Equal(t, 2, c.Items[0].Quantity)
}

func TestAddItemInsufficientStockLeavesCartUnchanged(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 5, models.ProductStatusActive)
	userID := uuid.New()

	before, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), userID, p.ID, 4, nil)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 5, stockErr.Available)

	after, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	require.Equal(t, 2, after.Items[0].Quantity)
	require.True(t, after.TotalAmount.Equal(before.TotalAmount))
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddItemInactiveProduct(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 5, models.ProductStatusInactive)

	_, err := svc.AddItem(context.Background(), uuid.New(), p.ID, 1, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateItemQuantity(context.Background(), userID, c.Items[0].ID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Items[0].Quantity)
	requireTotalInvariant(t, updated)
}

func TestUpdateItemQuantityOverStock(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 5, nil)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(context.Background(), userID, c.Items[0].ID, 100)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 10, stockErr.Available)

	after, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 5, after.Items[0].Quantity)
}

func TestUpdateItemQuantityRemovesItemWhenProductGone(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Product{}, "id = ?", p.ID).Error)

	updated, err := svc.UpdateItemQuantity(context.Background(), userID, c.Items[0].ID, 5)
	require.NoError(t, err)
	require.Empty(t, updated.Items)
	require.True(t, updated.TotalAmount.Equal(updated.DeliveryFee))
}

func TestUpdateItemQuantityMissing(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 1, nil)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(context.Background(), userID, uuid.New(), 2)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateItemQuantity(context.Background(), uuid.New(), uuid.New(), 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)
	itemID := c.Items[0].ID

	removed, err := svc.RemoveItem(context.Background(), userID, itemID)
	require.NoError(t, err)
	require.Empty(t, removed.Items)
	require.True(t, removed.TotalAmount.IsZero())

	again, err := svc.RemoveItem(context.Background(), userID, itemID)
	require.NoError(t, err)
	require.Empty(t, again.Items)
}

func TestSetDeliveryFee(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)

	c, err := svc.SetDeliveryFee(context.Background(), userID, decimal.NewFromFloat(4.99))
	require.NoError(t, err)
	require.True(t, c.TotalAmount.Equal(decimal.NewFromFloat(24.99)))
	requireTotalInvariant(t, c)

	_, err = svc.SetDeliveryFee(context.Background(), userID, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrValidation)
}

func TestClearKeepsTheRecord(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)
	_, err = svc.SetDeliveryFee(context.Background(), userID, decimal.NewFromInt(5))
	require.NoError(t, err)

	cleared, err := svc.Clear(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, c.ID, cleared.ID)
	require.Empty(t, cleared.Items)
	require.True(t, cleared.DeliveryFee.IsZero())
	require.True(t, cleared.TotalAmount.IsZero())
}

func TestCleanInvalidRemovesAndClamps(t *testing.T) {
	svc, db := newService(t)
	active := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	inactive := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	gone := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, active.ID, 8, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), userID, inactive.ID, 1, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), userID, gone.ID, 1, nil)
	require.NoError(t, err)

	// Stock drifts behind the cart's back.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", active.ID).Update("quantity", 3).Error)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("status", models.ProductStatusInactive).Error)
	require.NoError(t, db.Delete(&models.Product{}, "id = ?", gone.ID).Error)

	c, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, active.ID, c.Items[0].ProductID)
	require.Equal(t, 3, c.Items[0].Quantity)
	requireTotalInvariant(t, c)
}

func TestMergeGuestItemsClampsToStock(t *testing.T) {
	svc, db := newService(t)
	limited := seedProduct(t, db, 10, 4, models.ProductStatusActive)
	missing := uuid.New()
	inactive := seedProduct(t, db, 10, 10, models.ProductStatusInactive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, limited.ID, 2, nil)
	require.NoError(t, err)

	c, err := svc.MergeGuestItems(context.Background(), userID, []GuestItem{
		{ProductID: limited.ID, Quantity: 999},
		{ProductID: missing, Quantity: 3},
		{ProductID: inactive.ID, Quantity: 3},
	})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	require.Equal(t, 4, c.Items[0].Quantity)
	requireTotalInvariant(t, c)
}

func TestMergeGuestItemsAppendsNewCombinations(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 2, 5, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.MergeGuestItems(context.Background(), userID, []GuestItem{
		{ProductID: p.ID, Quantity: 2, Variants: map[string]string{"size": "S"}},
		{ProductID: p.ID, Quantity: 9, Variants: map[string]string{"size": "M"}},
	})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	for _, item := range c.Items {
		require.LessOrEqual(t, item.Quantity, 5)
	}
	requireTotalInvariant(t, c)
}

func TestEndToEndAddUpdateScenario(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 3, 10, models.ProductStatusActive)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, p.ID, 2, nil)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), userID, p.ID, 3, nil)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	require.Equal(t, 5, c.Items[0].Quantity)
	require.True(t, c.TotalAmount.Equal(decimal.NewFromInt(15)))

	_, err = svc.UpdateItemQuantity(context.Background(), userID, c.Items[0].ID, 100)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 10, stockErr.Available)

	after, err := svc.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 5, after.Items[0].Quantity)
}

// racingLookup bumps the cart's version mid-mutation exactly once, so the
// first save hits the version check and the mutation is replayed.
type racingLookup struct {
	ProductLookup
	db     *gorm.DB
	cartID uuid.UUID
	raced  bool
}

func (r *racingLookup) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if !r.raced {
		r.raced = true
		if err := r.db.Model(&models.Cart{}).Where("id = ?", r.cartID).
			Update("version", gorm.Expr("version + 1")).Error; err != nil {
			return nil, err
		}
	}
	return r.ProductLookup.FindByID(ctx, id)
}

func TestSaveConflictRetriesOnce(t *testing.T) {
	svc, db := newService(t)
	p := seedProduct(t, db, 10, 10, models.ProductStatusActive)
	userID := uuid.New()

	c, err := svc.AddItem(context.Background(), userID, p.ID, 1, nil)
	require.NoError(t, err)

	svc.Products = &racingLookup{ProductLookup: svc.Products, db: db, cartID: c.ID}

	updated, err := svc.UpdateItemQuantity(context.Background(), userID, c.Items[0].ID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, updated.Items[0].Quantity)
}

func TestStaleSaveConflicts(t *testing.T) {
	_, db := newService(t)
	repo := &GormRepo{DB: db}

	c := &models.Cart{UserID: uuid.New()}
	require.NoError(t, repo.Create(context.Background(), c))

	stale := *c
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", c.ID).
		Update("version", gorm.Expr("version + 1")).Error)

	err := repo.Save(context.Background(), &stale)
	require.True(t, errors.Is(err, ErrConflict))
}
