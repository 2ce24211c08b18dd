package cart

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marchelocal/marketplace/internal/logging"
	"github.com/marchelocal/marketplace/internal/models"
)

// ProductLookup is the catalog contract the aggregator depends on. Absent
// products come back as (nil, nil).
type ProductLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type GuestItem struct {
	ProductID uuid.UUID         `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"selected_variants"`
}

// Service owns the per-user cart aggregate. Every mutating operation leaves
// TotalAmount equal to the sum of item subtotals plus the delivery fee.
type Service struct {
	Repo     *GormRepo
	Products ProductLookup
}

// GetOrCreate returns the user's cart, lazily creating an empty one. The
// defensive cleanup pass runs on every read so stale items never reach the
// client: stock drifts between sessions.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed, err := s.CleanInvalid(ctx, c)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.Repo.Save(ctx, c); err != nil && !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return c, nil
}

// CleanInvalid drops items whose product is missing, inactive or out of
// stock, and clamps quantities that exceed the available stock. Removed items
// are reconciled silently, never reported as errors.
func (s *Service) CleanInvalid(ctx context.Context, c *models.Cart) (bool, error) {
	changed := false
	kept := c.Items[:0]
	for _, item := range c.Items {
		product, err := s.Products.FindByID(ctx, item.ProductID)
		if err != nil {
			return false, err
		}
		if product == nil || product.Status != models.ProductStatusActive || product.Quantity <= 0 {
			changed = true
			continue
		}
		if item.Quantity > product.Quantity {
			item.Quantity = product.Quantity
			changed = true
		}
		kept = append(kept, item)
	}
	c.Items = kept
	if changed {
		recalcTotal(c)
	}
	return changed, nil
}

func (s *Service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int, variants map[string]string) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	product, err := s.Products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	if product.Status != models.ProductStatusActive {
		return nil, fmt.Errorf("%w: product is no longer available", ErrValidation)
	}
	if quantity > product.Quantity {
		return nil, &InsufficientStockError{Available: product.Quantity}
	}

	return s.mutate(ctx, userID, true, func(c *models.Cart) error {
		if idx := findItem(c.Items, productID, variants); idx >= 0 {
			newQuantity := c.Items[idx].Quantity + quantity
			if newQuantity > product.Quantity {
				return &InsufficientStockError{Available: product.Quantity}
			}
			c.Items[idx].Quantity = newQuantity
			return nil
		}
		c.Items = append(c.Items, models.CartItem{
			ProductID:  productID,
			Quantity:   quantity,
			Variants:   variants,
			PriceAtAdd: product.Price,
			AddedAt:    time.Now(),
		})
		return nil
	})
}

// UpdateItemQuantity sets a new quantity for one item. If the referenced
// product disappeared from the catalog the item is removed instead.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	return s.mutate(ctx, userID, false, func(c *models.Cart) error {
		idx := -1
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: cart item", ErrNotFound)
		}

		product, err := s.Products.FindByID(ctx, c.Items[idx].ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return nil
		}
		if quantity > product.Quantity {
			return &InsufficientStockError{Available: product.Quantity}
		}
		c.Items[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem is idempotent: removing an item that is already gone succeeds.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, userID, false, func(c *models.Cart) error {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *Service) SetDeliveryFee(ctx context.Context, userID uuid.UUID, fee decimal.Decimal) (*models.Cart, error) {
	if fee.IsNegative() {
		return nil, fmt.Errorf("%w: delivery fee must not be negative", ErrValidation)
	}
	return s.mutate(ctx, userID, false, func(c *models.Cart) error {
		c.DeliveryFee = fee
		return nil
	})
}

// Clear empties the cart in place. The record itself is kept: carts are never
// hard-deleted.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, userID, false, func(c *models.Cart) error {
		c.Items = nil
		c.DeliveryFee = decimal.Zero
		return nil
	})
}

// MergeGuestItems folds a pre-login client-side cart into the server-side
// one. Unknown and inactive products are skipped; quantities are clamped to
// the available stock, so the merge can never oversell no matter how large
// the guest quantities are.
func (s *Service) MergeGuestItems(ctx context.Context, userID uuid.UUID, guestItems []GuestItem) (*models.Cart, error) {
	return s.mutate(ctx, userID, true, func(c *models.Cart) error {
		log := logging.FromContext(ctx)
		for _, guest := range guestItems {
			product, err := s.Products.FindByID(ctx, guest.ProductID)
			if err != nil {
				return err
			}
			if product == nil || product.Status != models.ProductStatusActive {
				log.Debug("merge skipped unavailable product", "product_id", guest.ProductID)
				continue
			}
			if product.Quantity <= 0 || guest.Quantity < 1 {
				continue
			}

			if idx := findItem(c.Items, guest.ProductID, guest.Variants); idx >= 0 {
				c.Items[idx].Quantity = min(c.Items[idx].Quantity+guest.Quantity, product.Quantity)
				continue
			}
			c.Items = append(c.Items, models.CartItem{
				ProductID:  guest.ProductID,
				Quantity:   min(guest.Quantity, product.Quantity),
				Variants:   guest.Variants,
				PriceAtAdd: product.Price,
				AddedAt:    time.Now(),
			})
		}
		return nil
	})
}

// mutate loads the aggregate, applies fn, recomputes the total and writes it
// back. A version conflict means another request won the race; the mutation
// is replayed once against the fresh state.
func (s *Service) mutate(ctx context.Context, userID uuid.UUID, createIfMissing bool, fn func(*models.Cart) error) (*models.Cart, error) {
	for attempt := 0; ; attempt++ {
		var c *models.Cart
		var err error
		if createIfMissing {
			c, err = s.load(ctx, userID)
		} else {
			c, err = s.Repo.FindByUser(ctx, userID)
		}
		if err != nil {
			return nil, err
		}

		if err := fn(c); err != nil {
			return nil, err
		}
		recalcTotal(c)
		c.LastActivity = time.Now()

		err = s.Repo.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	c, err := s.Repo.FindByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		c = &models.Cart{
			UserID:       userID,
			DeliveryFee:  decimal.Zero,
			TotalAmount:  decimal.Zero,
			LastActivity: time.Now(),
		}
		if err := s.Repo.Create(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func recalcTotal(c *models.Cart) {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalAmount = total.Add(c.DeliveryFee)
}

// Items match when they reference the same product with exactly the same
// variant selection; nil and empty selections are the same thing.
func findItem(items []models.CartItem, productID uuid.UUID, variants map[string]string) int {
	for i := range items {
		if items[i].ProductID == productID && maps.Equal(items[i].Variants, variants) {
			return i
		}
	}
	return -1
}
