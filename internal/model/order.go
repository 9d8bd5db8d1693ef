package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable purchase owned by one user.
type Order struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    uint            `json:"userId" gorm:"not null;index"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time       `json:"createdAt" gorm:"index"`

	// Relations
	User  *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem links an order to a product. UnitPrice is the product price at
// the time the order was placed.
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"orderId" gorm:"not null;index"`
	ProductID uint            `json:"productId" gorm:"not null;index"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2);not null"`

	// Relations
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

// MaxQuantity bounds one cart line and the summed demand for one product.
const MaxQuantity = 1000000

// MaxOrderTotal is the exclusive upper bound of an order total, matching the
// decimal(14,2) column.
var MaxOrderTotal = decimal.New(1, 12)

// CartItem is one requested line of an order before it is persisted.
type CartItem struct {
	ProductID uint
	Quantity  int
}
