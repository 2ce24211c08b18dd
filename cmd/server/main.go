package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/marchelocal/marketplace/internal/cart"
	"github.com/marchelocal/marketplace/internal/catalog"
	"github.com/marchelocal/marketplace/internal/config"
	"github.com/marchelocal/marketplace/internal/es"
	"github.com/marchelocal/marketplace/internal/events"
	"github.com/marchelocal/marketplace/internal/handlers"
	"github.com/marchelocal/marketplace/internal/logging"
	"github.com/marchelocal/marketplace/internal/notify"
	"github.com/marchelocal/marketplace/internal/order"
	httpserver "github.com/marchelocal/marketplace/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	taxRate, baseFee, freeAbove, err := configuration.PricingRules()
	if err != nil {
		log.Fatal(err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	producer := events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	defer producer.Close()

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	products := &catalog.Products{DB: db}
	shops := &catalog.Shops{DB: db}

	cartService := &cart.Service{
		Repo:     &cart.GormRepo{DB: db},
		Products: products,
	}
	orderService := &order.Service{
		Repo:  &order.GormRepo{DB: db},
		Shops: shops,
		Config: order.Config{
			TaxRate:               taxRate,
			BaseDeliveryFee:       baseFee,
			FreeDeliveryThreshold: freeAbove,
		},
	}
	outbox := &notify.Outbox{DB: db}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		AuthHandler:         &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret},
		ProductHandler:      &handlers.ProductHandler{DB: db, ES: esClient, Index: "product", Producer: producer, JWTSecret: jwtSecret},
		ShopHandler:         &handlers.ShopHandler{DB: db, JWTSecret: jwtSecret},
		CartHandler:         &handlers.CartHandler{Service: cartService, Producer: producer, JWTSecret: jwtSecret},
		OrderHandler:        &handlers.OrderHandler{Service: orderService, Producer: producer, JWTSecret: jwtSecret},
		NotificationHandler: &handlers.NotificationHandler{Outbox: outbox, JWTSecret: jwtSecret},
		SearchHandler:       &handlers.SearchHandler{ES: esClient, Index: "product"},
	}
	httpserver.Register(e, &deps)

	dispatcherCtx, stopDispatcher := context.WithCancel(logging.IntoContext(context.Background(), logger))
	defer stopDispatcher()
	dispatcher := &notify.Dispatcher{
		Outbox:    outbox,
		Publisher: producer,
		Interval:  5 * time.Second,
		Log:       logger,
	}
	go dispatcher.Run(dispatcherCtx)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	stopDispatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
