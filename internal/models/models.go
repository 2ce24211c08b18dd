package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Username     string    `gorm:"unique;not null"           json:"username"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null;default:customer" json:"role"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Shop struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"         json:"id"`
	Name         string          `gorm:"unique;not null"              json:"name"`
	Slug         string          `gorm:"uniqueIndex"                  json:"slug"`
	OwnerID      uuid.UUID       `gorm:"type:uuid;index;not null"     json:"owner_id"`
	Status       string          `gorm:"not null;default:active"      json:"status"`
	DeliveryFee  decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"delivery_fee"`
	MinimumOrder decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"minimum_order"`
}

func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	ShopID      uuid.UUID       `gorm:"type:uuid;index"             json:"shop_id"`
	Name        string          `gorm:"not null"                    json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity    int             `gorm:"not null;default:0"          json:"quantity"`
	Unit        string          `json:"unit"`
	Status      string          `gorm:"not null;default:active"     json:"status"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Cart is the per-user aggregate. Version guards the whole-document
// read-recompute-write cycle against lost updates.
type Cart struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"           json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Items        []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	DeliveryFee  decimal.Decimal `gorm:"type:decimal(12,2);default:0"   json:"delivery_fee"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(12,2);default:0"   json:"total_amount"`
	LastActivity time.Time       `gorm:"index"                          json:"last_activity"`
	Version      int64           `gorm:"not null;default:0"             json:"-"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CartItem struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"        json:"id"`
	CartID     uuid.UUID         `gorm:"type:uuid;index;not null"    json:"-"`
	ProductID  uuid.UUID         `gorm:"type:uuid;not null"          json:"product_id"`
	Quantity   int               `gorm:"not null;check:quantity>0"   json:"quantity"`
	Variants   map[string]string `gorm:"serializer:json"             json:"selected_variants"`
	PriceAtAdd decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"price_at_add"`
	AddedAt    time.Time         `json:"added_at"`
	Position   int               `gorm:"not null;default:0"          json:"-"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

type Pricing struct {
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"subtotal"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"delivery_fee"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total"`
}

type Payment struct {
	Method        string `json:"method"`
	Provider      string `json:"provider"`
	TransactionID string `json:"transaction_id"`
}

type Tracking struct {
	Code       string     `json:"code"`
	LastUpdate *time.Time `json:"last_update"`
	Location   string     `json:"location"`
}

// Order keeps its own copy of item names and prices so history survives
// product deletion. Timeline records when each status was first entered.
type Order struct {
	ID              uuid.UUID            `gorm:"type:uuid;primaryKey"     json:"id"`
	OrderNumber     string               `gorm:"uniqueIndex;not null"     json:"order_number"`
	CustomerID      uuid.UUID            `gorm:"type:uuid;index;not null" json:"customer_id"`
	ShopID          uuid.UUID            `gorm:"type:uuid;index;not null" json:"shop_id"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Status          string               `gorm:"index;not null;default:pending" json:"status"`
	DeliveryType    string               `gorm:"not null;default:delivery" json:"delivery_type"`
	DeliveryAddress Address              `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	Pricing         Pricing              `gorm:"embedded;embeddedPrefix:pricing_"  json:"pricing"`
	Payment         Payment              `gorm:"embedded;embeddedPrefix:payment_"  json:"payment"`
	Tracking        Tracking             `gorm:"embedded;embeddedPrefix:tracking_" json:"tracking"`
	Notes           string               `json:"notes"`
	Timeline        map[string]time.Time `gorm:"serializer:json"          json:"timeline"`
	Version         int64                `gorm:"not null;default:0"       json:"-"`
	CreatedAt       time.Time            `gorm:"index"                    json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"    json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid"                   json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity  int             `gorm:"not null;check:quantity>0"   json:"quantity"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type NotificationData struct {
	OrderID     uuid.UUID `json:"order_id"`
	ShopID      uuid.UUID `json:"shop_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
}

// Notification doubles as the outbox row: created inside the transaction of
// the state change that caused it, Sent flipped by the dispatcher.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	Type      string           `gorm:"not null"                 json:"type"`
	Title     string           `gorm:"not null"                 json:"title"`
	Message   string           `gorm:"not null"                 json:"message"`
	Data      NotificationData `gorm:"serializer:json"          json:"data"`
	Read      bool             `gorm:"not null;default:false"   json:"read"`
	ReadAt    *time.Time       `json:"read_at"`
	Sent      bool             `gorm:"index;not null;default:false" json:"-"`
	SentAt    *time.Time       `json:"-"`
	CreatedAt time.Time        `gorm:"index"                    json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
