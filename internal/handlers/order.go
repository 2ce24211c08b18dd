package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/marchelocal/marketplace/internal/events"
	"github.com/marchelocal/marketplace/internal/models"
	"github.com/marchelocal/marketplace/internal/order"
	"github.com/marchelocal/marketplace/internal/util"
)

type OrderHandler struct {
	Service   *order.Service
	Producer  events.Publisher
	JWTSecret []byte
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", eventKey(event), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		ShopID string `json:"shopId"`
		Items  []struct {
			ProductID string          `json:"productId"`
			Name      string          `json:"name"`
			Price     decimal.Decimal `json:"price"`
			Quantity  int             `json:"quantity"`
		} `json:"items"`
		DeliveryAddress models.Address `json:"deliveryAddress"`
		DeliveryType    string         `json:"deliveryType"`
		PaymentMethod   string         `json:"paymentMethod"`
		Notes           string         `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shopID, err := parseUUID(req.ShopID, "shopId")
	if err != nil {
		return err
	}

	subtotal := decimal.Zero
	items := make([]order.ItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		productID, err := parseUUID(it.ProductID, "productId")
		if err != nil {
			return err
		}
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, order.ItemParams{
			ProductID: productID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	o, err := h.Service.Create(c.Request().Context(), order.CreateParams{
		CustomerID:      userID,
		ShopID:          shopID,
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryType:    req.DeliveryType,
		DeliveryFee:     h.Service.Config.DeliveryFeeFor(subtotal),
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":        "order_created",
		"userID":      userID.String(),
		"orderID":     o.ID.String(),
		"orderNumber": o.OrderNumber,
	})
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	o, err := h.Service.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) listFilter(c echo.Context) order.ListFilter {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)
	return order.ListFilter{
		Status: c.QueryParam("status"),
		Limit:  limit,
		Offset: offset,
	}
}

func (h *OrderHandler) GetAllOrders(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	orders, total, err := h.Service.Repo.List(c.Request().Context(), h.listFilter(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders, "total": total})
}

func (h *OrderHandler) GetOrdersByShop(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	shopID, err := parseUUIDParam(c, "shopId")
	if err != nil {
		return err
	}

	orders, total, err := h.Service.Repo.ListByShop(c.Request().Context(), shopID, h.listFilter(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders, "total": total})
}

func (h *OrderHandler) GetMyOrders(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	orders, total, err := h.Service.Repo.ListByCustomer(c.Request().Context(), userID, h.listFilter(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders, "total": total})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	st, err := order.ParseStatus(req.Status)
	if err != nil {
		return serviceError(err)
	}

	o, err := h.Service.Transition(c.Request().Context(), id, st)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":        "order_status_updated",
		"userID":      userID.String(),
		"orderID":     o.ID.String(),
		"orderNumber": o.OrderNumber,
		"status":      o.Status,
	})
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	o, err := h.Service.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return serviceError(err)
	}

	h.publish(c, map[string]any{
		"type":        "order_cancelled",
		"userID":      userID.String(),
		"orderID":     o.ID.String(),
		"orderNumber": o.OrderNumber,
	})
	return c.JSON(http.StatusOK, o)
}
