package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/models"
)

var ErrNotFound = errors.New("not found")

// Outbox reads and flips notification rows. Rows are inserted by the order
// service inside its own transactions; this side only drains them.
type Outbox struct {
	DB *gorm.DB
}

func (o *Outbox) FetchUnsent(ctx context.Context, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := o.DB.WithContext(ctx).
		Where("sent = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return o.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"sent": true, "sent_at": now}).Error
}

func (o *Outbox) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	where := func() *gorm.DB {
		q := o.DB.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
		if unreadOnly {
			q = q.Where("read = ?", false)
		}
		return q
	}

	var total int64
	if err := where().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Notification
	err := where().Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (o *Outbox) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	now := time.Now()
	res := o.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (o *Outbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	now := time.Now()
	res := o.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]any{"read": true, "read_at": now})
	return res.RowsAffected, res.Error
}
