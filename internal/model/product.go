package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxStock is the largest stock count the integer column holds.
const MaxStock = math.MaxInt32

// MaxPrice is the exclusive upper bound of a unit price, matching the
// decimal(12,2) column.
var MaxPrice = decimal.New(1, 10)

// Product represents a catalog item.
type Product struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Name      string          `json:"name" gorm:"size:255;not null;index"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock     int             `json:"stock" gorm:"not null;default:0"`
	Image     *string         `json:"image,omitempty" gorm:"size:1024"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProductPatch carries the optional fields of a product update.
type ProductPatch struct {
	Name  *string
	Price *decimal.Decimal
	Stock *int
	Image *string
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Stock == nil && p.Image == nil
}

// Updates returns the column map applied by the repository.
func (p ProductPatch) Updates() map[string]interface{} {
	updates := make(map[string]interface{}, 4)
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Price != nil {
		updates["price"] = *p.Price
	}
	if p.Stock != nil {
		updates["stock"] = *p.Stock
	}
	if p.Image != nil {
		updates["image"] = *p.Image
	}
	return updates
}
