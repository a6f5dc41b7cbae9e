package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodTransfer  PaymentMethod = "transfer"
	PaymentMethodInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodInsurance:
		return true
	}
	return false
}

// Invoice amounts other than TotalAmount and DiscountAmount are derived by the
// ledger package and rewritten on every payment change.
type Invoice struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Number             string          `gorm:"uniqueIndex;size:20" json:"invoice_number"`
	PatientID          uint            `gorm:"index" json:"patient_id"`
	Patient            *Patient        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	VisitID            *uint           `gorm:"index" json:"visit_id,omitempty"`
	InvoiceDate        time.Time       `json:"invoice_date"`
	InvoiceDay         string          `gorm:"index;size:10" json:"invoice_day"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2)" json:"discount_percentage"`
	NetAmount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"net_amount"`
	PaidAmount         decimal.Decimal `gorm:"type:decimal(12,2)" json:"paid_amount"`
	RemainingAmount    decimal.Decimal `gorm:"type:decimal(12,2);index" json:"remaining_amount"`
	InvoiceType        string          `gorm:"index;size:50" json:"invoice_type"`
	PaymentStatus      PaymentStatus   `gorm:"index;size:20" json:"payment_status"`
	Notes              string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy          *uint           `json:"created_by,omitempty"`
	Items              []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments           []Payment       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (i Invoice) IsCancelled() bool {
	return i.PaymentStatus == PaymentStatusCancelled
}

type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index" json:"invoice_id"`
	Description string          `gorm:"size:500" json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_price"`
}

type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index" json:"invoice_id"`
	PaymentDate time.Time       `json:"payment_date"`
	PaymentDay  string          `gorm:"index;size:10" json:"payment_day"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Method      PaymentMethod   `gorm:"size:20" json:"payment_method"`
	Reference   string          `gorm:"size:100" json:"reference,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	ReceivedBy  *uint           `json:"received_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
