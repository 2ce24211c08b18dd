package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/models"
	"github.com/marchelocal/marketplace/internal/util"
)

type ShopHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(s), "-")
}

func (h *ShopHandler) CreateShop(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		Name         string          `json:"name"`
		DeliveryFee  decimal.Decimal `json:"deliveryFee"`
		MinimumOrder decimal.Decimal `json:"minimumOrder"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.DeliveryFee.IsNegative() || req.MinimumOrder.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "fees must be >= 0")
	}

	shop := models.Shop{
		Name:         req.Name,
		Slug:         slugify(req.Name),
		OwnerID:      userID,
		Status:       "active",
		DeliveryFee:  req.DeliveryFee,
		MinimumOrder: req.MinimumOrder,
	}
	if err := h.DB.Create(&shop).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, shop)
}

func (h *ShopHandler) GetShop(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var shop models.Shop
	if err := h.DB.Where("id = ?", id).First(&shop).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "shop not found")
	}
	return c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) GetShops(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Shop{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var shops []models.Shop
	if err := h.DB.Model(&models.Shop{}).Order("name ASC").Offset(offset).Limit(limit).Find(&shops).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"data": shops, "total": total})
}
