package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"uniqueIndex;size:50" json:"item_code"`
	Name          string          `gorm:"index;size:200" json:"item_name"`
	Category      string          `gorm:"index;size:100" json:"category"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	Unit          string          `gorm:"size:30" json:"unit"`
	Quantity      int             `json:"quantity"`
	MinimumStock  int             `json:"minimum_stock"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	SupplierName  string          `gorm:"size:200" json:"supplier_name,omitempty"`
	SupplierPhone string          `gorm:"size:30" json:"supplier_phone,omitempty"`
	ExpiryDate    *time.Time      `gorm:"index" json:"expiry_date,omitempty"`
	Location      string          `gorm:"size:100" json:"location,omitempty"`
	IsActive      bool            `gorm:"index" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.MinimumStock
}

// IsExpiringSoon reports whether the item expires within days of now,
// including items already past their expiry date.
func (i InventoryItem) IsExpiringSoon(now time.Time, days int) bool {
	if i.ExpiryDate == nil {
		return false
	}
	return !i.ExpiryDate.After(now.AddDate(0, 0, days))
}

func (i InventoryItem) IsExpired(now time.Time) bool {
	return i.ExpiryDate != nil && i.ExpiryDate.Before(now)
}

func (i InventoryItem) StockValue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type InventoryTransactionType string

const (
	InventoryTransactionAdd     InventoryTransactionType = "add"
	InventoryTransactionConsume InventoryTransactionType = "consume"
	InventoryTransactionAdjust  InventoryTransactionType = "adjust"
)

type InventoryTransaction struct {
	ID             uint                     `gorm:"primaryKey" json:"id"`
	ItemID         uint                     `gorm:"index" json:"item_id"`
	Type           InventoryTransactionType `gorm:"size:20" json:"transaction_type"`
	Quantity       int                      `json:"quantity"`
	QuantityBefore int                      `json:"quantity_before"`
	QuantityAfter  int                      `json:"quantity_after"`
	Reference      string                   `gorm:"size:100" json:"reference,omitempty"`
	Notes          string                   `gorm:"type:text" json:"notes,omitempty"`
	UserID         *uint                    `json:"user_id,omitempty"`
	CreatedAt      time.Time                `gorm:"index" json:"created_at"`
}
