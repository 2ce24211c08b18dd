package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marchelocal/marketplace/internal/models"
)

// Products is the read-only view the cart and order services have of the
// catalog. Absent products are (nil, nil), not an error: carts must degrade
// gracefully as the catalog changes.
type Products struct {
	DB *gorm.DB
}

func (p *Products) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := p.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Shops resolves shop metadata, in particular the owner to notify on order
// transitions.
type Shops struct {
	DB *gorm.DB
}

func (s *Shops) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}
