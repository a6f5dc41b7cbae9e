package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/database/invoices"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/utils"
)

// ReceiptRenderer renders a printable markdown receipt for an invoice.
type ReceiptRenderer interface {
	Receipt(invoiceID uint) (string, *entities.Invoice, error)
}

type InvoicesController struct {
	store    InvoiceStore
	receipts ReceiptRenderer
	activity ActivityLogger
	now      func() time.Time
}

func NewInvoicesController(store InvoiceStore, receipts ReceiptRenderer, activity ActivityLogger) *InvoicesController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &InvoicesController{store: store, receipts: receipts, activity: activity, now: time.Now}
}

type invoiceItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    *int            `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createInvoiceRequest struct {
	PatientID          uint                 `json:"patient_id" binding:"required"`
	VisitID            *uint                `json:"visit_id"`
	InvoiceDate        string               `json:"invoice_date"`
	InvoiceType        string               `json:"invoice_type"`
	Notes              string               `json:"notes"`
	Items              []invoiceItemRequest `json:"items" binding:"dive"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	DiscountAmount     *decimal.Decimal     `json:"discount_amount"`
	DiscountPercentage *decimal.Decimal     `json:"discount_percentage"`
}

// Create issues an invoice. Items, when given, define the total.
// POST /api/invoices
func (ic *InvoicesController) Create(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patient_id is required and items need a description")
		return
	}

	date := ic.now()
	if req.InvoiceDate != "" {
		day, err := time.ParseInLocation(entities.DayLayout, req.InvoiceDate, time.Local)
		if err != nil {
			respondBadRequest(c, "invoice_date must be YYYY-MM-DD")
			return
		}
		date = day
	}

	items := make([]entities.InvoiceItem, 0, len(req.Items))
	for _, it := range req.Items {
		quantity := 1
		if it.Quantity != nil {
			quantity = *it.Quantity
		}
		if it.UnitPrice.IsNegative() {
			respondBadRequest(c, "unit_price must not be negative")
			return
		}
		items = append(items, entities.InvoiceItem{
			Description: it.Description,
			Quantity:    quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	inv, err := ic.store.Create(invoices.CreateRequest{
		PatientID:          req.PatientID,
		VisitID:            req.VisitID,
		InvoiceDate:        date,
		InvoiceType:        req.InvoiceType,
		Notes:              req.Notes,
		Items:              items,
		Total:              req.TotalAmount,
		DiscountAmount:     req.DiscountAmount,
		DiscountPercentage: req.DiscountPercentage,
		CreatedBy:          userRef(c),
	})
	if err != nil {
		respondStoreError(c, err, "create invoice")
		return
	}

	ic.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "invoice", inv.ID, "issued invoice "+inv.Number, gin.H{
		"net_amount": inv.NetAmount.StringFixed(2),
	})
	respondCreated(c, inv)
}

// Get returns an invoice with items and payments.
// GET /api/invoices/:id
func (ic *InvoicesController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := ic.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// GetByNumber looks an invoice up by its printed number.
// GET /api/invoices/number/:number
func (ic *InvoicesController) GetByNumber(c *gin.Context) {
	inv, err := ic.store.GetByNumber(c.Param("number"))
	if err != nil {
		respondStoreError(c, err, "get invoice by number")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// List returns invoices in ?from..?to, or every open invoice with ?unpaid=true.
// GET /api/invoices
func (ic *InvoicesController) List(c *gin.Context) {
	if c.Query("unpaid") == "true" {
		list, err := ic.store.Unpaid()
		if err != nil {
			respondInternalError(c, err, "list unpaid invoices")
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(list))
		return
	}

	from, to, ok := parseRangeQuery(c, ic.now())
	if !ok {
		return
	}
	list, err := ic.store.ByDateRange(from, to)
	if err != nil {
		respondInternalError(c, err, "list invoices")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// ForPatient lists a patient's invoices.
// GET /api/patients/:id/invoices
func (ic *InvoicesController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ic.store.ForPatient(id)
	if err != nil {
		respondInternalError(c, err, "list patient invoices")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

type updateInvoiceRequest struct {
	InvoiceType        *string          `json:"invoice_type"`
	Notes              *string          `json:"notes"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
}

// Update changes header fields and the discount; balances are re-derived.
// PUT /api/invoices/:id
func (ic *InvoicesController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid invoice update")
		return
	}

	inv, err := ic.store.Update(id, invoices.UpdateRequest{
		InvoiceType:        req.InvoiceType,
		Notes:              req.Notes,
		DiscountAmount:     req.DiscountAmount,
		DiscountPercentage: req.DiscountPercentage,
	})
	if err != nil {
		respondStoreError(c, err, "update invoice")
		return
	}

	ic.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "invoice", id, "updated invoice "+inv.Number, nil)
	c.JSON(http.StatusOK, inv)
}

// Cancel voids an invoice that has no payments.
// POST /api/invoices/:id/cancel
func (ic *InvoicesController) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ic.store.Cancel(id); err != nil {
		respondStoreError(c, err, "cancel invoice")
		return
	}
	ic.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "invoice", id, "cancelled invoice", nil)
	respondSuccess(c, "invoice cancelled")
}

type paymentRequest struct {
	Amount    decimal.Decimal        `json:"amount"`
	Method    entities.PaymentMethod `json:"payment_method"`
	Reference string                 `json:"reference"`
	Notes     string                 `json:"notes"`
}

// AddPayment records money received against an invoice.
// POST /api/invoices/:id/payments
func (ic *InvoicesController) AddPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "amount is required")
		return
	}
	if !req.Amount.IsPositive() {
		respondBadRequest(c, "amount must be positive")
		return
	}
	if req.Method == "" {
		req.Method = entities.PaymentMethodCash
	}

	p := &entities.Payment{
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
		PaymentDate: ic.now(),
		ReceivedBy:  userRef(c),
	}
	inv, err := ic.store.AddPayment(id, p)
	if err != nil {
		respondStoreError(c, err, "add payment")
		return
	}

	ic.activity.LogPayment(GetUserID(c), inv.ID, inv.Number, p.Amount, p.Method)
	respondCreated(c, inv)
}

// Payments lists the payments on an invoice.
// GET /api/invoices/:id/payments
func (ic *InvoicesController) Payments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ic.store.Payments(id)
	if err != nil {
		respondStoreError(c, err, "list payments")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// DeletePayment removes a payment and re-derives the invoice balance.
// DELETE /api/payments/:id
func (ic *InvoicesController) DeletePayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := ic.store.DeletePayment(id)
	if err != nil {
		respondStoreError(c, err, "delete payment")
		return
	}
	ic.activity.LogDelete(GetUserID(c), "payment", id, inv.Number, true)
	c.JSON(http.StatusOK, inv)
}

// Receipt serves a markdown receipt; ?download=true sets an attachment name.
// GET /api/invoices/:id/receipt
func (ic *InvoicesController) Receipt(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if ic.receipts == nil {
		respondError(c, http.StatusServiceUnavailable, "receipts are not available")
		return
	}

	body, inv, err := ic.receipts.Receipt(id)
	if err != nil {
		respondStoreError(c, err, "render receipt")
		return
	}
	if c.Query("download") == "true" {
		name := utils.ExportFilename("receipt "+inv.Number, ic.now(), "md")
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(body))
}
