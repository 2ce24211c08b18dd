package cart

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

func (r *GormRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) Create(ctx context.Context, c *models.Cart) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

// Save writes the whole aggregate back. The cart row is updated with a
// compare-and-swap on Version; a stale read surfaces as ErrConflict and the
// items are left untouched.
func (r *GormRepo) Save(ctx context.Context, c *models.Cart) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Cart{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]any{
				"delivery_fee":  c.DeliveryFee,
				"total_amount":  c.TotalAmount,
				"last_activity": c.LastActivity,
				"version":       c.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		for i := range c.Items {
			c.Items[i].CartID = c.ID
			c.Items[i].Position = i
		}
		if len(c.Items) > 0 {
			if err := tx.Create(&c.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Version++
	return nil
}
