// Package inventory provides database operations for stock items and the
// transactions that move their quantities.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrItemNotFound          = errors.New("inventory item not found")
	ErrCodeRequired          = errors.New("item code and name are required")
	ErrCodeExists            = errors.New("item code already exists")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrInvalidTransaction    = errors.New("invalid transaction type")
	ErrNegativeAdjustment    = errors.New("adjusted quantity cannot be negative")
	ErrTransactionOnInactive = errors.New("item is deactivated")
)

var editableColumns = []string{
	"name", "category", "description", "unit", "minimum_stock", "unit_price",
	"supplier_name", "supplier_phone", "expiry_date", "location",
}

// Repository handles inventory database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new inventory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem creates an active item. Opening stock, if any, is recorded as an
// "add" transaction.
func (r *Repository) AddItem(item *entities.InventoryItem) error {
	if strings.TrimSpace(item.Code) == "" || strings.TrimSpace(item.Name) == "" {
		return ErrCodeRequired
	}
	if item.Quantity < 0 {
		return ErrNegativeAdjustment
	}
	item.ExpiryDate = normalizeDate(item.ExpiryDate)
	item.IsActive = true

	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.InventoryItem{}).Where("code = ?", item.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCodeExists
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		if item.Quantity > 0 {
			opening := &entities.InventoryTransaction{
				ItemID:         item.ID,
				Type:           entities.InventoryTransactionAdd,
				Quantity:       item.Quantity,
				QuantityBefore: 0,
				QuantityAfter:  item.Quantity,
				Notes:          "opening stock",
			}
			if err := tx.Create(opening).Error; err != nil {
				return fmt.Errorf("failed to record opening stock: %w", err)
			}
		}
		return nil
	})
}

// normalizeDate keeps only the calendar day, in UTC, so stored expiry dates
// compare consistently.
func normalizeDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day
}

func (r *Repository) GetByID(id uint) (*entities.InventoryItem, error) {
	var item entities.InventoryItem
	if err := r.db.First(&item, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &item, nil
}

func (r *Repository) GetByCode(code string) (*entities.InventoryItem, error) {
	var item entities.InventoryItem
	if err := r.db.Where("code = ?", code).First(&item).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &item, nil
}

// List returns items ordered by name.
func (r *Repository) List(activeOnly bool) ([]entities.InventoryItem, error) {
	q := r.db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var items []entities.InventoryItem
	err := q.Find(&items).Error
	return items, err
}

func (r *Repository) ByCategory(category string) ([]entities.InventoryItem, error) {
	var items []entities.InventoryItem
	err := r.db.Where("is_active = ? AND category = ?", true, category).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

// Search matches active items by name, code or supplier.
func (r *Repository) Search(term string) ([]entities.InventoryItem, error) {
	like := "%" + strings.TrimSpace(term) + "%"
	var items []entities.InventoryItem
	err := r.db.Where("is_active = ?", true).
		Where("name LIKE ? OR code LIKE ? OR supplier_name LIKE ?", like, like, like).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

// Categories returns distinct categories of active items.
func (r *Repository) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&entities.InventoryItem{}).
		Where("is_active = ? AND category <> ''", true).
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// Update writes descriptive fields. Quantity changes go through AddTransaction.
func (r *Repository) Update(item *entities.InventoryItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return ErrCodeRequired
	}
	item.ExpiryDate = normalizeDate(item.ExpiryDate)
	result := r.db.Model(&entities.InventoryItem{ID: item.ID}).Select(editableColumns).Updates(item)
	if result.Error != nil {
		return fmt.Errorf("failed to update item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// SoftDelete deactivates an item, keeping its transaction history.
func (r *Repository) SoftDelete(id uint) error {
	result := r.db.Model(&entities.InventoryItem{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// AddTransaction applies a stock movement to an item and records it. For
// "add" and "consume" Quantity is the delta; for "adjust" it is the counted
// stock.
func (r *Repository) AddTransaction(t *entities.InventoryTransaction) (*entities.InventoryItem, error) {
	var item entities.InventoryItem
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, t.ItemID).Error; err != nil {
			return mapNotFound(err)
		}
		if !item.IsActive {
			return ErrTransactionOnInactive
		}

		before := item.Quantity
		var after int
		switch t.Type {
		case entities.InventoryTransactionAdd:
			if t.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			after = before + t.Quantity
		case entities.InventoryTransactionConsume:
			if t.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			if t.Quantity > before {
				return fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, before, t.Quantity)
			}
			after = before - t.Quantity
		case entities.InventoryTransactionAdjust:
			if t.Quantity < 0 {
				return ErrNegativeAdjustment
			}
			after = t.Quantity
		default:
			return ErrInvalidTransaction
		}

		result := tx.Model(&entities.InventoryItem{}).
			Where("id = ? AND quantity = ?", item.ID, before).
			Update("quantity", after)
		if result.Error != nil {
			return fmt.Errorf("failed to update stock: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("stock of item %d changed concurrently", item.ID)
		}

		t.ID = 0
		t.QuantityBefore = before
		t.QuantityAfter = after
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		item.Quantity = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Transactions lists an item's stock movements, newest first.
func (r *Repository) Transactions(itemID uint) ([]entities.InventoryTransaction, error) {
	var txs []entities.InventoryTransaction
	err := r.db.Where("item_id = ?", itemID).Order("created_at DESC, id DESC").Find(&txs).Error
	return txs, err
}

// LowStock lists active items at or below their minimum stock.
func (r *Repository) LowStock() ([]entities.InventoryItem, error) {
	var items []entities.InventoryItem
	err := r.db.Where("is_active = ? AND quantity <= minimum_stock", true).
		Order("quantity ASC, name ASC").
		Find(&items).Error
	return items, err
}

// ExpiringSoon lists active items expiring within days from now, expired
// ones included.
func (r *Repository) ExpiringSoon(now time.Time, days int) ([]entities.InventoryItem, error) {
	limit := normalizeDate(ptr(now.AddDate(0, 0, days)))
	var items []entities.InventoryItem
	err := r.db.Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", true, *limit).
		Order("expiry_date ASC").
		Find(&items).Error
	return items, err
}

// Expired lists active items whose expiry day is before today.
func (r *Repository) Expired(now time.Time) ([]entities.InventoryItem, error) {
	today := normalizeDate(&now)
	var items []entities.InventoryItem
	err := r.db.Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date < ?", true, *today).
		Order("expiry_date ASC").
		Find(&items).Error
	return items, err
}

// TotalValue sums quantity times unit price over active items.
func (r *Repository) TotalValue() (decimal.Decimal, error) {
	var items []entities.InventoryItem
	if err := r.db.Select("quantity", "unit_price").Where("is_active = ?", true).Find(&items).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.StockValue())
	}
	return total, nil
}

func ptr[T any](v T) *T {
	return &v
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrItemNotFound
	}
	return err
}
