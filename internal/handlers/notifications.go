package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marchelocal/marketplace/internal/notify"
	"github.com/marchelocal/marketplace/internal/util"
)

type NotificationHandler struct {
	Outbox    *notify.Outbox
	JWTSecret []byte
}

func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)
	unreadOnly := c.QueryParam("unread") == "true"

	rows, total, err := h.Outbox.ListByUser(c.Request().Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"data": rows, "total": total})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.Outbox.MarkRead(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	updated, err := h.Outbox.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"updated": updated})
}
