// Package ledger derives invoice balances from the stored total, discount
// and payments. It has no storage dependency; repositories call Apply inside
// the transaction that changes payments.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrNonPositivePayment = errors.New("payment amount must be greater than zero")
	ErrOverpayment        = errors.New("payment exceeds remaining amount")
	ErrInvalidDiscount    = errors.New("discount must be between zero and the invoice total")
	ErrInvalidPercentage  = errors.New("discount percentage must be between 0 and 100")
	ErrInvalidQuantity    = errors.New("item quantity must be greater than zero")
	ErrNegativePrice      = errors.New("item price cannot be negative")
)

var hundred = decimal.NewFromInt(100)

// NetAmount is total minus discount.
func NetAmount(total, discount decimal.Decimal) decimal.Decimal {
	return total.Sub(discount)
}

// Remaining is net minus the sum of payments. It goes negative on overpayment.
func Remaining(net, paid decimal.Decimal) decimal.Decimal {
	return net.Sub(paid)
}

// Status classifies an invoice from its net amount and the sum paid so far.
func Status(net, paid decimal.Decimal) entities.PaymentStatus {
	switch {
	case Remaining(net, paid).LessThanOrEqual(decimal.Zero):
		return entities.PaymentStatusPaid
	case paid.GreaterThan(decimal.Zero):
		return entities.PaymentStatusPartial
	default:
		return entities.PaymentStatusUnpaid
	}
}

// DiscountFromPercentage converts a percentage of total into an amount,
// rounded to cents.
func DiscountFromPercentage(total, pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidPercentage
	}
	return total.Mul(pct).Div(hundred).Round(2), nil
}

// PercentageOf returns discount as a percentage of total, rounded to two places.
func PercentageOf(total, discount decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return discount.Mul(hundred).Div(total).Round(2)
}

// ValidateDiscount checks 0 <= discount <= total.
func ValidateDiscount(total, discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(total) {
		return ErrInvalidDiscount
	}
	return nil
}

// ResolveDiscount picks the discount amount for an invoice. An explicit
// amount wins; a percentage is only used when no amount is given.
func ResolveDiscount(total decimal.Decimal, amount, pct *decimal.Decimal) (decimal.Decimal, error) {
	discount := decimal.Zero
	switch {
	case amount != nil:
		discount = *amount
	case pct != nil:
		d, err := DiscountFromPercentage(total, *pct)
		if err != nil {
			return decimal.Zero, err
		}
		discount = d
	}
	if err := ValidateDiscount(total, discount); err != nil {
		return decimal.Zero, err
	}
	return discount, nil
}

// PriceItems fills TotalPrice on every item and returns the invoice total.
func PriceItems(items []entities.InvoiceItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range items {
		if items[i].Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("item %d: %w", i+1, ErrInvalidQuantity)
		}
		if items[i].UnitPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("item %d: %w", i+1, ErrNegativePrice)
		}
		items[i].TotalPrice = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(items[i].TotalPrice)
	}
	return total, nil
}

// SumPayments adds up payment amounts.
func SumPayments(payments []entities.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Apply recomputes every derived amount on inv from its total, discount and
// the given payments. Cancelled invoices keep their status.
func Apply(inv *entities.Invoice, payments []entities.Payment) {
	paid := SumPayments(payments)
	inv.NetAmount = NetAmount(inv.TotalAmount, inv.DiscountAmount)
	inv.DiscountPercentage = PercentageOf(inv.TotalAmount, inv.DiscountAmount)
	inv.PaidAmount = paid
	inv.RemainingAmount = Remaining(inv.NetAmount, paid)
	if !inv.IsCancelled() {
		inv.PaymentStatus = Status(inv.NetAmount, paid)
	}
}

// ValidatePayment checks a new payment against what is still owed.
func ValidatePayment(amount, remaining decimal.Decimal, allowOverpay bool) error {
	if !amount.IsPositive() {
		return ErrNonPositivePayment
	}
	if !allowOverpay && amount.GreaterThan(remaining) {
		return ErrOverpayment
	}
	return nil
}
