package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/marchelocal/marketplace/internal/cart"
	"github.com/marchelocal/marketplace/internal/events"
	"github.com/marchelocal/marketplace/internal/models"
)

type CartHandler struct {
	Service   *cart.Service
	Producer  events.Publisher
	JWTSecret []byte
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", eventKey(event), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func eventKey(event map[string]any) string {
	if v, ok := event["userID"].(string); ok {
		return v
	}
	return ""
}

type cartItemResponse struct {
	ID               string            `json:"id"`
	ProductID        string            `json:"productId"`
	Quantity         int               `json:"quantity"`
	SelectedVariants map[string]string `json:"selectedVariants"`
	PriceAtAdd       decimal.Decimal   `json:"priceAtAdd"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	AddedAt          time.Time         `json:"addedAt"`
}

type cartResponse struct {
	ID          string             `json:"id"`
	Items       []cartItemResponse `json:"items"`
	DeliveryFee decimal.Decimal    `json:"deliveryFee"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	ItemsTotal  decimal.Decimal    `json:"itemsTotal"`
	ItemsCount  int                `json:"itemsCount"`
}

func toCartResponse(c *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
		items = append(items, cartItemResponse{
			ID:               item.ID.String(),
			ProductID:        item.ProductID.String(),
			Quantity:         item.Quantity,
			SelectedVariants: item.Variants,
			PriceAtAdd:       item.PriceAtAdd,
			Subtotal:         item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))),
			AddedAt:          item.AddedAt,
		})
	}
	return cartResponse{
		ID:          c.ID.String(),
		Items:       items,
		DeliveryFee: c.DeliveryFee,
		TotalAmount: c.TotalAmount,
		ItemsTotal:  c.TotalAmount.Sub(c.DeliveryFee),
		ItemsCount:  count,
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	crt, err := h.Service.GetOrCreate(c.Request().Context(), userID)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":   "get_cart",
		"userID": userID.String(),
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		ProductID        string            `json:"productId"`
		Quantity         int               `json:"quantity"`
		SelectedVariants map[string]string `json:"selectedVariants"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	productID, err := parseUUID(req.ProductID, "productId")
	if err != nil {
		return err
	}

	crt, err := h.Service.AddItem(c.Request().Context(), userID, productID, req.Quantity, req.SelectedVariants)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID.String(),
		"productID": req.ProductID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	itemID, err := parseUUIDParam(c, "itemId")
	if err != nil {
		return err
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	crt, err := h.Service.UpdateItemQuantity(c.Request().Context(), userID, itemID, req.Quantity)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":     "cart_item_updated",
		"userID":   userID.String(),
		"itemID":   itemID.String(),
		"quantity": req.Quantity,
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	itemID, err := parseUUIDParam(c, "itemId")
	if err != nil {
		return err
	}

	crt, err := h.Service.RemoveItem(c.Request().Context(), userID, itemID)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_item_removed",
		"userID": userID.String(),
		"itemID": itemID.String(),
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *CartHandler) UpdateDeliveryFee(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		DeliveryFee decimal.Decimal `json:"deliveryFee"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	crt, err := h.Service.SetDeliveryFee(c.Request().Context(), userID, req.DeliveryFee)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"deliveryFee": crt.DeliveryFee,
		"totalAmount": crt.TotalAmount,
	})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	crt, err := h.Service.Clear(c.Request().Context(), userID)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID.String(),
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}

func (h *CartHandler) MergeCart(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		GuestItems []struct {
			ProductID        string            `json:"productId"`
			Quantity         int               `json:"quantity"`
			SelectedVariants map[string]string `json:"selectedVariants"`
		} `json:"guestItems"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if len(req.GuestItems) == 0 {
		return c.JSON(http.StatusOK, map[string]any{"message": "nothing to merge"})
	}

	guestItems := make([]cart.GuestItem, 0, len(req.GuestItems))
	for _, gi := range req.GuestItems {
		productID, err := parseUUID(gi.ProductID, "productId")
		if err != nil {
			return err
		}
		guestItems = append(guestItems, cart.GuestItem{
			ProductID: productID,
			Quantity:  gi.Quantity,
			Variants:  gi.SelectedVariants,
		})
	}

	crt, err := h.Service.MergeGuestItems(c.Request().Context(), userID, guestItems)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_merged",
		"userID": userID.String(),
	})
	return c.JSON(http.StatusOK, toCartResponse(crt))
}
