package model

import "time"

// Product is the inventory-facing view of a catalog product. Prices are whole
// Toman (zero decimal places), stored as int64 to keep arithmetic exact.
type Product struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	SKU                string    `json:"sku"`
	Price              int64     `json:"price"`
	StockQuantity      int       `json:"stock_quantity"`
	IsActive           bool      `json:"is_active"`
	MaxPurchasePerUser int       `json:"max_purchase_per_user"`
	SalesCount         int       `json:"-"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`
}

// MaxOrderable is the largest quantity a single cart may hold for this
// product: whatever is in stock, further capped by the per-user purchase cap.
func (p *Product) MaxOrderable() int {
	if p.MaxPurchasePerUser > 0 && p.MaxPurchasePerUser < p.StockQuantity {
		return p.MaxPurchasePerUser
	}
	return p.StockQuantity
}

// Available reports whether the product can satisfy the requested quantity
// right now. Checked live at checkout; cart rows keep their price snapshot.
func (p *Product) Available(quantity int) bool {
	return p.IsActive && p.StockQuantity > 0 && p.StockQuantity >= quantity
}
