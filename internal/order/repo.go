package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

// Create persists the order and its outbox rows in one transaction, so a
// notification row exists exactly when the state change it announces does.
func (r *GormRepo) Create(ctx context.Context, o *models.Order, notifications []models.Notification) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		if len(notifications) > 0 {
			if err := tx.Create(&notifications).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus writes the status, notes and timeline with a compare-and-swap
// on Version. A raced transition loses cleanly with ErrConflict instead of
// overwriting the winner's timeline. The write goes through the struct path so
// the timeline's json serializer applies.
func (r *GormRepo) UpdateStatus(ctx context.Context, o *models.Order, notifications []models.Notification) error {
	prev := o.Version
	o.Version = prev + 1

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(o).
			Where("id = ? AND version = ?", o.ID, prev).
			Select("status", "notes", "timeline", "version").
			Updates(o)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if len(notifications) > 0 {
			if err := tx.Create(&notifications).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.Version = prev
		return err
	}
	return nil
}

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

func (r *GormRepo) List(ctx context.Context, f ListFilter) ([]models.Order, int64, error) {
	return r.list(ctx, f, nil, nil)
}

func (r *GormRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, f ListFilter) ([]models.Order, int64, error) {
	return r.list(ctx, f, "customer_id = ?", customerID)
}

func (r *GormRepo) ListByShop(ctx context.Context, shopID uuid.UUID, f ListFilter) ([]models.Order, int64, error) {
	return r.list(ctx, f, "shop_id = ?", shopID)
}

func (r *GormRepo) list(ctx context.Context, f ListFilter, cond any, arg any) ([]models.Order, int64, error) {
	where := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&models.Order{})
		if cond != nil {
			q = q.Where(cond, arg)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}

	var total int64
	if err := where().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := where().Preload("Items").
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
