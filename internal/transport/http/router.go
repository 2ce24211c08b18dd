package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/marchelocal/marketplace/internal/handlers"
)

type Deps struct {
	AuthHandler         *handlers.AuthHandler
	ProductHandler      *handlers.ProductHandler
	ShopHandler         *handlers.ShopHandler
	CartHandler         *handlers.CartHandler
	OrderHandler        *handlers.OrderHandler
	NotificationHandler *handlers.NotificationHandler
	SearchHandler       *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct)
	products.PATCH("/:id", d.ProductHandler.PatchProduct)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct)

	shops := v1.Group("/shops")
	shops.GET("", d.ShopHandler.GetShops)
	shops.GET("/:id", d.ShopHandler.GetShop)
	shops.POST("", d.ShopHandler.CreateShop)

	cart := v1.Group("/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:itemId", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:itemId", d.CartHandler.RemoveItem)
	cart.PATCH("/delivery-fee", d.CartHandler.UpdateDeliveryFee)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/merge", d.CartHandler.MergeCart)

	orders := v1.Group("/orders")
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.GetAllOrders)
	orders.GET("/mine", d.OrderHandler.GetMyOrders)
	orders.GET("/shop/:shopId", d.OrderHandler.GetOrdersByShop)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	notifications := v1.Group("/notifications")
	notifications.GET("", d.NotificationHandler.GetNotifications)
	notifications.PATCH("/:id/read", d.NotificationHandler.MarkRead)
	notifications.PATCH("/read-all", d.NotificationHandler.MarkAllRead)
}
