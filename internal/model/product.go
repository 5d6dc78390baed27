package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalogue product.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ProductVariant is a sellable size/colour combination of a product.
// StockQuantity and DamagedQuantity are independently non-negative.
type ProductVariant struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	ProductID       uuid.UUID           `json:"productId" db:"product_id"`
	ProductName     string              `json:"productName" db:"product_name"`
	SKU             string              `json:"sku" db:"sku"`
	Size            string              `json:"size" db:"size"`
	Color           string              `json:"color" db:"color"`
	PriceBase       decimal.Decimal     `json:"priceBase" db:"price_base"`
	PriceSale       decimal.NullDecimal `json:"priceSale" db:"price_sale"`
	StockQuantity   int                 `json:"stockQuantity" db:"stock_quantity"`
	DamagedQuantity int                 `json:"damagedQuantity" db:"damaged_quantity"`
	CreatedAt       time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time           `json:"updatedAt" db:"updated_at"`
}

// EffectivePrice is the sale price when one is set and positive, else the base price.
func (v *ProductVariant) EffectivePrice() decimal.Decimal {
	if v.PriceSale.Valid && v.PriceSale.Decimal.IsPositive() {
		return v.PriceSale.Decimal
	}
	return v.PriceBase
}
