package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/marchelocal/marketplace/internal/models"
)

func TestGetNotifications(t *testing.T) {
	env := newTestEnv(t)
	user, ck := login(t, env)
	shop := seedShop(t, env)

	// An order fan-out writes one row for the customer.
	createOrder(t, env, ck, shop.ID.String())

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/notifications", nil, ck)
	require.NoError(t, env.Notifications.GetNotifications(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []models.Notification `json:"data"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp.Total)
	require.Equal(t, user.ID, resp.Data[0].UserID)
	require.Equal(t, "ORDER_PENDING", resp.Data[0].Type)
	require.False(t, resp.Data[0].Read)
}

func TestMarkNotificationRead(t *testing.T) {
	env := newTestEnv(t)
	_, ck := login(t, env)
	shop := seedShop(t, env)
	createOrder(t, env, ck, shop.ID.String())

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/notifications", nil, ck)
	require.NoError(t, env.Notifications.GetNotifications(c))
	var resp struct {
		Data []models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data)
	id := resp.Data[0].ID.String()

	rec, c = env.doJSONRequest(http.MethodPatch, "/api/v1/notifications/"+id+"/read", nil, ck)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Notifications.MarkRead(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, c = env.doJSONRequest(http.MethodGet, "/api/v1/notifications?unread=true", nil, ck)
	require.NoError(t, env.Notifications.GetNotifications(c))
	var unread struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	require.Zero(t, unread.Total)
}

func TestMarkNotificationReadUnknownID(t *testing.T) {
	env := newTestEnv(t)
	_, ck := login(t, env)

	id := uuid.NewString()
	_, c := env.doJSONRequest(http.MethodPatch, "/api/v1/notifications/"+id+"/read", nil, ck)
	c.SetParamNames("id")
	c.SetParamValues(id)
	err := env.Notifications.MarkRead(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	env := newTestEnv(t)
	_, ck := login(t, env)
	shop := seedShop(t, env)
	createOrder(t, env, ck, shop.ID.String())
	createOrder(t, env, ck, shop.ID.String())

	rec, c := env.doJSONRequest(http.MethodPatch, "/api/v1/notifications/read-all", nil, ck)
	require.NoError(t, env.Notifications.MarkAllRead(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 2, resp.Updated)
}
