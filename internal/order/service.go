package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marchelocal/marketplace/internal/logging"
	"github.com/marchelocal/marketplace/internal/models"
)

// ShopLookup resolves the shop owner for notification fan-out.
type ShopLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

// Config holds the pricing rules. Injected at construction so tests can run
// with alternate rates.
type Config struct {
	TaxRate               decimal.Decimal
	BaseDeliveryFee       decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// DeliveryFeeFor applies the flat-fee-with-waiver rule: orders above the
// threshold ship free.
func (c Config) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(c.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return c.BaseDeliveryFee
}

type ItemParams struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

type CreateParams struct {
	CustomerID      uuid.UUID
	ShopID          uuid.UUID
	Items           []ItemParams
	DeliveryAddress models.Address
	DeliveryType    string
	DeliveryFee     decimal.Decimal
	PaymentMethod   string
	Notes           string
}

// Service owns order creation and the status lifecycle. Notification rows
// are written in the same transaction as the order itself; delivering them is
// the outbox dispatcher's problem.
type Service struct {
	Repo   *GormRepo
	Shops  ShopLookup
	Config Config
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Order, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	if p.DeliveryType == "" {
		p.DeliveryType = "delivery"
	}
	if p.DeliveryType != "delivery" && p.DeliveryType != "pickup" {
		return nil, fmt.Errorf("%w: delivery type must be delivery or pickup", ErrValidation)
	}
	if p.DeliveryFee.IsNegative() {
		return nil, fmt.Errorf("%w: delivery fee must not be negative", ErrValidation)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
		lineSubtotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(lineSubtotal)
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Subtotal:  lineSubtotal,
		})
	}

	// Rounding happens once here, at tax/total computation, not per line.
	tax := subtotal.Mul(s.Config.TaxRate).Round(2)
	total := subtotal.Add(tax).Add(p.DeliveryFee).Round(2)

	// The id is assigned here, not in the insert hook: the fan-out below
	// needs it for the notification payloads.
	now := time.Now()
	o := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(now),
		CustomerID:      p.CustomerID,
		ShopID:          p.ShopID,
		Items:           items,
		Status:          string(StatusPending),
		DeliveryType:    p.DeliveryType,
		DeliveryAddress: p.DeliveryAddress,
		Pricing: models.Pricing{
			Subtotal:    subtotal,
			Tax:         tax,
			DeliveryFee: p.DeliveryFee,
			Discount:    decimal.Zero,
			Total:       total,
		},
		Payment:   models.Payment{Method: p.PaymentMethod},
		Notes:     p.Notes,
		Timeline:  map[string]time.Time{"created": now},
		CreatedAt: now,
	}

	notifications := s.fanOut(ctx, o, StatusPending)
	if err := s.Repo.Create(ctx, o, notifications); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order created",
		"order_number", o.OrderNumber, "customer_id", o.CustomerID, "shop_id", o.ShopID)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.Repo.FindByID(ctx, id)
}

// Transition moves the order to newStatus if the adjacency table allows it,
// stamps the timeline and enqueues the fan-out.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, newStatus Status) (*models.Order, error) {
	if _, err := ParseStatus(string(newStatus)); err != nil {
		return nil, err
	}

	o, err := s.Repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := Status(o.Status)
	if !CanTransition(current, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
	}

	s.stamp(o, newStatus)
	o.Status = string(newStatus)

	notifications := s.fanOut(ctx, o, newStatus)
	if err := s.Repo.UpdateStatus(ctx, o, notifications); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order status updated",
		"order_number", o.OrderNumber, "from", current, "to", newStatus)
	return o, nil
}

func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	o, err := s.Repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := Status(o.Status)
	if current == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if current.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, current)
	}

	if reason != "" {
		o.Notes = strings.TrimSpace(o.Notes + "\nCancellation reason: " + reason)
	}
	s.stamp(o, StatusCancelled)
	o.Status = string(StatusCancelled)

	notifications := s.fanOut(ctx, o, StatusCancelled)
	if err := s.Repo.UpdateStatus(ctx, o, notifications); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order cancelled", "order_number", o.OrderNumber)
	return o, nil
}

// stamp records when a status was first entered.
func (s *Service) stamp(o *models.Order, st Status) {
	if o.Timeline == nil {
		o.Timeline = map[string]time.Time{}
	}
	if _, ok := o.Timeline[string(st)]; !ok {
		o.Timeline[string(st)] = time.Now()
	}
}

// fanOut builds the notification rows for a transition: one for the customer
// and one for the shop owner, when the message table has text for them. A
// failed shop lookup is logged and skipped, never propagated; notifications
// are best-effort and must not block the order write.
func (s *Service) fanOut(ctx context.Context, o *models.Order, newStatus Status) []models.Notification {
	msg, ok := statusMessages[newStatus]
	if !ok {
		return nil
	}

	notifType := "ORDER_" + strings.ToUpper(string(newStatus))
	title := "Order " + o.OrderNumber
	data := models.NotificationData{
		OrderID:     o.ID,
		ShopID:      o.ShopID,
		OrderNumber: o.OrderNumber,
		Status:      string(newStatus),
	}

	var notifications []models.Notification
	if msg.Customer != "" {
		notifications = append(notifications, models.Notification{
			UserID:  o.CustomerID,
			Type:    notifType,
			Title:   title,
			Message: msg.Customer,
			Data:    data,
		})
	}

	if msg.Shop != "" {
		shop, err := s.Shops.FindByID(ctx, o.ShopID)
		if err != nil {
			logging.FromContext(ctx).Error("shop lookup for notification failed",
				"shop_id", o.ShopID, "err", err)
		} else if shop != nil && shop.OwnerID != uuid.Nil {
			notifications = append(notifications, models.Notification{
				UserID:  shop.OwnerID,
				Type:    notifType,
				Title:   title,
				Message: msg.Shop,
				Data:    data,
			})
		}
	}
	return notifications
}

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderNumber composes a human-readable number from the millisecond
// timestamp in base36 plus a random suffix. Collisions are a data-integrity
// error: the unique index rejects them.
func generateOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(orderNumberAlphabet))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			n = big.NewInt(now.UnixNano() % int64(len(orderNumberAlphabet)))
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return "ORD-" + ts + "-" + string(suffix)
}
