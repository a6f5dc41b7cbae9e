// Package invoices provides database operations for invoices, their line
// items and payments. Every write that touches money re-derives the invoice
// balance with the ledger package inside the same transaction.
package invoices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/ledger"
)

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrInvoiceCancelled  = errors.New("invoice is cancelled")
	ErrDiscountBelowPaid = errors.New("discount would leave the invoice below the amount already paid")
	ErrInvalidMethod     = errors.New("invalid payment method")
	ErrInvoiceHasPayment = errors.New("invoice has payments")
	ErrNegativeTotal     = errors.New("invoice total cannot be negative")
)

const numberDayLayout = "20060102"

// CreateRequest carries a new invoice. When Items is non-empty the total is
// their sum and Total is ignored. DiscountAmount wins over DiscountPercentage.
type CreateRequest struct {
	PatientID          uint
	VisitID            *uint
	InvoiceDate        time.Time
	InvoiceType        string
	Notes              string
	Items              []entities.InvoiceItem
	Total              decimal.Decimal
	DiscountAmount     *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	CreatedBy          *uint
}

// UpdateRequest changes invoice header fields. Nil fields are left alone.
type UpdateRequest struct {
	InvoiceType        *string
	Notes              *string
	DiscountAmount     *decimal.Decimal
	DiscountPercentage *decimal.Decimal
}

// Repository handles invoice and payment database operations.
type Repository struct {
	db           *gorm.DB
	allowOverpay bool
}

// NewRepository creates a new invoices repository that rejects overpayment.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AllowOverpayment lets AddPayment accept amounts above the remaining balance.
func (r *Repository) AllowOverpayment(allow bool) *Repository {
	r.allowOverpay = allow
	return r
}

// Create stores an invoice with its items under a new INV-YYYYMMDD-NNNN number.
func (r *Repository) Create(req CreateRequest) (*entities.Invoice, error) {
	items := append([]entities.InvoiceItem(nil), req.Items...)
	total := req.Total
	if len(items) > 0 {
		t, err := ledger.PriceItems(items)
		if err != nil {
			return nil, err
		}
		total = t
	}
	if total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	discount, err := ledger.ResolveDiscount(total, req.DiscountAmount, req.DiscountPercentage)
	if err != nil {
		return nil, err
	}

	date := req.InvoiceDate
	if date.IsZero() {
		date = time.Now()
	}

	invoice := &entities.Invoice{
		PatientID:      req.PatientID,
		VisitID:        req.VisitID,
		InvoiceDate:    date,
		InvoiceDay:     date.Format(entities.DayLayout),
		TotalAmount:    total,
		DiscountAmount: discount,
		InvoiceType:    req.InvoiceType,
		Notes:          req.Notes,
		CreatedBy:      req.CreatedBy,
		Items:          items,
	}
	ledger.Apply(invoice, nil)

	err = r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Patient{}).Where("id = ?", req.PatientID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPatientNotFound
		}

		number, err := nextNumber(tx, date)
		if err != nil {
			return err
		}
		invoice.Number = number

		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func nextNumber(tx *gorm.DB, date time.Time) (string, error) {
	prefix := "INV-" + date.Format(numberDayLayout) + "-"

	var last string
	err := tx.Model(&entities.Invoice{}).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &last).Error
	if err != nil {
		return "", fmt.Errorf("failed to read last invoice number: %w", err)
	}

	seq := 1
	if last != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// GetByID returns an invoice with its patient, items and payments.
func (r *Repository) GetByID(id uint) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := r.withDetails(r.db).First(&invoice, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &invoice, nil
}

func (r *Repository) GetByNumber(number string) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := r.withDetails(r.db).Where("number = ?", number).First(&invoice).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &invoice, nil
}

func (r *Repository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Patient").
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, id ASC")
		})
}

// ForPatient lists a patient's invoices, newest first.
func (r *Repository) ForPatient(patientID uint) ([]entities.Invoice, error) {
	var invoices []entities.Invoice
	err := r.db.Where("patient_id = ?", patientID).
		Order("invoice_date DESC, id DESC").
		Find(&invoices).Error
	return invoices, err
}

// Unpaid lists invoices with a positive remaining amount, oldest first.
func (r *Repository) Unpaid() ([]entities.Invoice, error) {
	var invoices []entities.Invoice
	err := r.db.Preload("Patient").
		Where("remaining_amount > 0 AND payment_status <> ?", entities.PaymentStatusCancelled).
		Order("invoice_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

// ByDateRange lists invoices dated within [from, to] (YYYY-MM-DD).
func (r *Repository) ByDateRange(from, to string) ([]entities.Invoice, error) {
	var invoices []entities.Invoice
	err := r.db.Preload("Patient").
		Where("invoice_day BETWEEN ? AND ?", from, to).
		Order("invoice_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

// Update changes header fields. A new discount is checked against the total
// and must not push the net amount below what was already paid.
func (r *Repository) Update(id uint, req UpdateRequest) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Payments").First(&invoice, id).Error; err != nil {
			return mapNotFound(err)
		}
		if invoice.IsCancelled() {
			return ErrInvoiceCancelled
		}

		if req.InvoiceType != nil {
			invoice.InvoiceType = *req.InvoiceType
		}
		if req.Notes != nil {
			invoice.Notes = *req.Notes
		}
		if req.DiscountAmount != nil || req.DiscountPercentage != nil {
			discount, err := ledger.ResolveDiscount(invoice.TotalAmount, req.DiscountAmount, req.DiscountPercentage)
			if err != nil {
				return err
			}
			paid := ledger.SumPayments(invoice.Payments)
			if ledger.NetAmount(invoice.TotalAmount, discount).LessThan(paid) {
				return ErrDiscountBelowPaid
			}
			invoice.DiscountAmount = discount
		}

		ledger.Apply(&invoice, invoice.Payments)
		return saveBalance(tx, &invoice, "invoice_type", "notes")
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Cancel voids an invoice that has no payments.
func (r *Repository) Cancel(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var invoice entities.Invoice
		if err := tx.Preload("Payments").First(&invoice, id).Error; err != nil {
			return mapNotFound(err)
		}
		if len(invoice.Payments) > 0 {
			return ErrInvoiceHasPayment
		}
		return tx.Model(&entities.Invoice{}).Where("id = ?", id).
			Update("payment_status", entities.PaymentStatusCancelled).Error
	})
}

// AddPayment records a payment and re-derives paid, remaining and status
// from the full payment list inside one transaction.
func (r *Repository) AddPayment(invoiceID uint, p *entities.Payment) (*entities.Invoice, error) {
	if p.Method == "" {
		p.Method = entities.PaymentMethodCash
	}
	if !p.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	p.PaymentDay = p.PaymentDate.Format(entities.DayLayout)

	var invoice entities.Invoice
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Payments").First(&invoice, invoiceID).Error; err != nil {
			return mapNotFound(err)
		}
		if invoice.IsCancelled() {
			return ErrInvoiceCancelled
		}

		ledger.Apply(&invoice, invoice.Payments)
		if err := ledger.ValidatePayment(p.Amount, invoice.RemainingAmount, r.allowOverpay); err != nil {
			return err
		}

		p.ID = 0
		p.InvoiceID = invoice.ID
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		invoice.Payments = append(invoice.Payments, *p)
		ledger.Apply(&invoice, invoice.Payments)
		return saveBalance(tx, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// DeletePayment removes a payment and re-derives the invoice balance.
func (r *Repository) DeletePayment(paymentID uint) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var payment entities.Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if err := tx.Delete(&payment).Error; err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}

		if err := tx.Preload("Payments").First(&invoice, payment.InvoiceID).Error; err != nil {
			return mapNotFound(err)
		}
		ledger.Apply(&invoice, invoice.Payments)
		return saveBalance(tx, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func saveBalance(tx *gorm.DB, inv *entities.Invoice, extra ...string) error {
	columns := append([]string{
		"discount_amount", "discount_percentage", "net_amount",
		"paid_amount", "remaining_amount", "payment_status",
	}, extra...)
	err := tx.Model(&entities.Invoice{ID: inv.ID}).Select(columns).Updates(inv).Error
	if err != nil {
		return fmt.Errorf("failed to update invoice balance: %w", err)
	}
	return nil
}

// Payments lists the payments of an invoice in the order they were taken.
func (r *Repository) Payments(invoiceID uint) ([]entities.Payment, error) {
	var payments []entities.Payment
	err := r.db.Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

// TotalRevenue sums payments received within [from, to] (YYYY-MM-DD).
func (r *Repository) TotalRevenue(from, to string) (decimal.Decimal, error) {
	var payments []entities.Payment
	err := r.db.Select("amount").
		Where("payment_day BETWEEN ? AND ?", from, to).
		Find(&payments).Error
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.SumPayments(payments), nil
}

// TotalDebts sums the remaining amount of every open invoice.
func (r *Repository) TotalDebts() (decimal.Decimal, error) {
	var open []entities.Invoice
	err := r.db.Select("remaining_amount").
		Where("remaining_amount > 0 AND payment_status <> ?", entities.PaymentStatusCancelled).
		Find(&open).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, inv := range open {
		total = total.Add(inv.RemainingAmount)
	}
	return total, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvoiceNotFound
	}
	return err
}
