package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/entities"
)

type InventoryController struct {
	store       InventoryStore
	activity    ActivityLogger
	warningDays int
	now         func() time.Time
}

func NewInventoryController(store InventoryStore, activity ActivityLogger, warningDays int) *InventoryController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	if warningDays <= 0 {
		warningDays = 90
	}
	return &InventoryController{store: store, activity: activity, warningDays: warningDays, now: time.Now}
}

type itemRequest struct {
	Code          string          `json:"item_code"`
	Name          string          `json:"item_name" binding:"required"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	Quantity      int             `json:"quantity"`
	MinimumStock  int             `json:"minimum_stock"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	SupplierName  string          `json:"supplier_name"`
	SupplierPhone string          `json:"supplier_phone"`
	ExpiryDate    string          `json:"expiry_date"`
	Location      string          `json:"location"`
}

func (r itemRequest) toItem() (*entities.InventoryItem, error) {
	item := &entities.InventoryItem{
		Code:          strings.TrimSpace(r.Code),
		Name:          strings.TrimSpace(r.Name),
		Category:      strings.TrimSpace(r.Category),
		Description:   r.Description,
		Unit:          r.Unit,
		Quantity:      r.Quantity,
		MinimumStock:  r.MinimumStock,
		UnitPrice:     r.UnitPrice,
		SupplierName:  r.SupplierName,
		SupplierPhone: r.SupplierPhone,
		Location:      r.Location,
	}
	if r.ExpiryDate != "" {
		expiry, err := time.ParseInLocation(entities.DayLayout, r.ExpiryDate, time.Local)
		if err != nil {
			return nil, err
		}
		item.ExpiryDate = &expiry
	}
	return item, nil
}

// List returns items, optionally filtered by ?category= or ?q=.
// GET /api/inventory
func (ic *InventoryController) List(c *gin.Context) {
	var (
		list []entities.InventoryItem
		err  error
	)
	switch {
	case c.Query("q") != "":
		list, err = ic.store.Search(c.Query("q"))
	case c.Query("category") != "":
		list, err = ic.store.ByCategory(c.Query("category"))
	default:
		list, err = ic.store.List(c.Query("all") != "true")
	}
	if err != nil {
		respondInternalError(c, err, "list inventory")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Create adds an item; a non-zero opening quantity is booked as a transaction.
// POST /api/inventory
func (ic *InventoryController) Create(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "item_name is required")
		return
	}
	if req.Quantity < 0 || req.MinimumStock < 0 || req.UnitPrice.IsNegative() {
		respondBadRequest(c, "quantity, minimum_stock and unit_price must not be negative")
		return
	}
	item, err := req.toItem()
	if err != nil {
		respondBadRequest(c, "expiry_date must be YYYY-MM-DD")
		return
	}

	if err := ic.store.AddItem(item); err != nil {
		respondStoreError(c, err, "create inventory item")
		return
	}

	ic.activity.LogActivity(GetUserID(c), entities.AuditEventInventory, "inventory_item", item.ID, "added item "+item.Code, gin.H{"quantity": item.Quantity})
	respondCreated(c, item)
}

// Get returns one item.
// GET /api/inventory/:id
func (ic *InventoryController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	item, err := ic.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get inventory item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// Update edits descriptive fields. The quantity in the body is ignored.
// PUT /api/inventory/:id
func (ic *InventoryController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "item_name is required")
		return
	}
	if req.MinimumStock < 0 || req.UnitPrice.IsNegative() {
		respondBadRequest(c, "minimum_stock and unit_price must not be negative")
		return
	}
	item, err := req.toItem()
	if err != nil {
		respondBadRequest(c, "expiry_date must be YYYY-MM-DD")
		return
	}
	item.ID = id

	if err := ic.store.Update(item); err != nil {
		respondStoreError(c, err, "update inventory item")
		return
	}
	updated, err := ic.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "reload inventory item")
		return
	}

	ic.activity.LogActivity(GetUserID(c), entities.AuditEventInventory, "inventory_item", id, "updated item "+updated.Code, nil)
	c.JSON(http.StatusOK, updated)
}

// Deactivate hides an item and keeps its history.
// DELETE /api/inventory/:id
func (ic *InventoryController) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ic.store.SoftDelete(id); err != nil {
		respondStoreError(c, err, "deactivate inventory item")
		return
	}
	ic.activity.LogDelete(GetUserID(c), "inventory_item", id, "", false)
	respondSuccess(c, "item deactivated")
}

type transactionRequest struct {
	Type      entities.InventoryTransactionType `json:"transaction_type" binding:"required"`
	Quantity  int                               `json:"quantity"`
	Reference string                            `json:"reference"`
	Notes     string                            `json:"notes"`
}

// AddTransaction books stock in, out, or a counted adjustment.
// POST /api/inventory/:id/transactions
func (ic *InventoryController) AddTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "transaction_type is required")
		return
	}

	t := &entities.InventoryTransaction{
		ItemID:    id,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reference: req.Reference,
		Notes:     req.Notes,
		UserID:    userRef(c),
	}
	item, err := ic.store.AddTransaction(t)
	if err != nil {
		respondStoreError(c, err, "record inventory transaction")
		return
	}

	ic.activity.LogActivity(GetUserID(c), entities.AuditEventInventory, "inventory_item", id, string(t.Type)+" "+item.Code, gin.H{
		"quantity": t.Quantity,
		"before":   t.QuantityBefore,
		"after":    t.QuantityAfter,
	})
	c.JSON(http.StatusCreated, gin.H{"item": item, "transaction": t})
}

// Transactions lists an item's stock movements, newest first.
// GET /api/inventory/:id/transactions
func (ic *InventoryController) Transactions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ic.store.Transactions(id)
	if err != nil {
		respondStoreError(c, err, "list inventory transactions")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Alerts returns low-stock, expiring and expired items in one call.
// GET /api/inventory/alerts?days=
func (ic *InventoryController) Alerts(c *gin.Context) {
	days := ic.warningDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondBadRequest(c, "days must be a non-negative integer")
			return
		}
		days = n
	}
	now := ic.now()

	low, err := ic.store.LowStock()
	if err != nil {
		respondInternalError(c, err, "low stock")
		return
	}
	expiring, err := ic.store.ExpiringSoon(now, days)
	if err != nil {
		respondInternalError(c, err, "expiring items")
		return
	}
	expired, err := ic.store.Expired(now)
	if err != nil {
		respondInternalError(c, err, "expired items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"low_stock":     emptyIfNil(low),
		"expiring_soon": emptyIfNil(expiring),
		"expired":       emptyIfNil(expired),
		"warning_days":  days,
	})
}

// Value returns the stock value of active items.
// GET /api/inventory/value
func (ic *InventoryController) Value(c *gin.Context) {
	total, err := ic.store.TotalValue()
	if err != nil {
		respondInternalError(c, err, "inventory value")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_value": total})
}

// Categories lists distinct categories of active items.
// GET /api/inventory/categories
func (ic *InventoryController) Categories(c *gin.Context) {
	list, err := ic.store.Categories()
	if err != nil {
		respondInternalError(c, err, "inventory categories")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}
