package invoices

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/ledger"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB, uint) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	patient := &entities.Patient{Code: "P1", FirstName: "Mona", LastName: "Adel", IsActive: true}
	require.NoError(t, db.DB.Create(patient).Error)

	return NewRepository(db.DB), db.DB, patient.ID
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func cash(amount string) *entities.Payment {
	return &entities.Payment{Amount: dec(amount), Method: entities.PaymentMethodCash}
}

func TestNextNumber_PastFourDigits(t *testing.T) {
	_, db, patientID := setupTestDB(t)
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

	for _, number := range []string{"INV-20260314-9999", "INV-20260314-10000"} {
		require.NoError(t, db.Create(&entities.Invoice{
			Number:      number,
			PatientID:   patientID,
			InvoiceDate: day,
			InvoiceDay:  "2026-03-14",
		}).Error)
	}

	next, err := nextNumber(db, day)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260314-10001", next)
}

func TestRepository_PaymentsFollowLedger(t *testing.T) {
	repo, _, patientID := setupTestDB(t)

	inv, err := repo.Create(CreateRequest{
		PatientID:      patientID,
		InvoiceType:    "examination",
		Total:          dec("300"),
		DiscountAmount: decp("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "250", inv.NetAmount.String())
	assert.Equal(t, entities.PaymentStatusUnpaid, inv.PaymentStatus)

	inv, err = repo.AddPayment(inv.ID, cash("100"))
	require.NoError(t, err)
	assert.Equal(t, "150", inv.RemainingAmount.String())
	assert.Equal(t, entities.PaymentStatusPartial, inv.PaymentStatus)

	inv, err = repo.AddPayment(inv.ID, cash("150"))
	require.NoError(t, err)
	assert.True(t, inv.RemainingAmount.IsZero())
	assert.Equal(t, entities.PaymentStatusPaid, inv.PaymentStatus)

	stored, err := repo.GetByID(inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.RemainingAmount.IsZero())
	assert.True(t, stored.PaidAmount.Equal(dec("250")))
	assert.Equal(t, entities.PaymentStatusPaid, stored.PaymentStatus)
	assert.Len(t, stored.Payments, 2)
	require.NotNil(t, stored.Patient)
}

func TestRepository_Create_FromItems(t *testing.T) {
	repo, _, patientID := setupTestDB(t)

	inv, err := repo.Create(CreateRequest{
		PatientID: patientID,
		Total:     dec("9999"),
		Items: []entities.InvoiceItem{
			{Description: "Examination", Quantity: 1, UnitPrice: dec("200")},
			{Description: "Injection", Quantity: 2, UnitPrice: dec("35")},
		},
		DiscountPercentage: decp("10"),
	})
	require.NoError(t, err)

	assert.Equal(t, "270", inv.TotalAmount.String())
	assert.Equal(t, "27", inv.DiscountAmount.String())
	assert.Equal(t, "243", inv.NetAmount.String())

	stored, err := repo.GetByID(inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "70", stored.Items[1].TotalPrice.String())
}

func TestRepository_Create_Numbering(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

	first, err := repo.Create(CreateRequest{PatientID: patientID, InvoiceDate: day, Total: dec("10")})
	require.NoError(t, err)
	second, err := repo.Create(CreateRequest{PatientID: patientID, InvoiceDate: day, Total: dec("10")})
	require.NoError(t, err)
	other, err := repo.Create(CreateRequest{PatientID: patientID, InvoiceDate: day.AddDate(0, 0, 1), Total: dec("10")})
	require.NoError(t, err)

	assert.Equal(t, "INV-20260314-0001", first.Number)
	assert.Equal(t, "INV-20260314-0002", second.Number)
	assert.Equal(t, "INV-20260315-0001", other.Number)

	found, err := repo.GetByNumber("INV-20260314-0002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestRepository_Create_Validation(t *testing.T) {
	repo, _, patientID := setupTestDB(t)

	_, err := repo.Create(CreateRequest{PatientID: 999, Total: dec("10")})
	assert.ErrorIs(t, err, ErrPatientNotFound)

	_, err = repo.Create(CreateRequest{PatientID: patientID, Total: dec("100"), DiscountAmount: decp("150")})
	assert.ErrorIs(t, err, ledger.ErrInvalidDiscount)

	_, err = repo.Create(CreateRequest{PatientID: patientID, Total: dec("-1")})
	assert.ErrorIs(t, err, ErrNegativeTotal)

	_, err = repo.Create(CreateRequest{PatientID: patientID, Items: []entities.InvoiceItem{{Quantity: 0}}})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestRepository_AddPayment_Rejections(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	inv, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("100")})
	require.NoError(t, err)

	_, err = repo.AddPayment(inv.ID, cash("100.01"))
	assert.ErrorIs(t, err, ledger.ErrOverpayment)

	_, err = repo.AddPayment(inv.ID, cash("0"))
	assert.ErrorIs(t, err, ledger.ErrNonPositivePayment)

	_, err = repo.AddPayment(inv.ID, &entities.Payment{Amount: dec("1"), Method: "barter"})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = repo.AddPayment(12345, cash("1"))
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	payments, err := repo.Payments(inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestRepository_AddPayment_OverpaymentAllowed(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	repo.AllowOverpayment(true)

	inv, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("100")})
	require.NoError(t, err)

	inv, err = repo.AddPayment(inv.ID, cash("120"))
	require.NoError(t, err)
	assert.Equal(t, "-20", inv.RemainingAmount.String())
	assert.Equal(t, entities.PaymentStatusPaid, inv.PaymentStatus)
}

func TestRepository_AddPayment_Concurrent(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	inv, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("100")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.AddPayment(inv.ID, cash("15"))
		}()
	}
	wg.Wait()

	stored, err := repo.GetByID(inv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 6, "only payments that fit the balance are accepted")
	assert.Equal(t, "90", stored.PaidAmount.String())
	assert.Equal(t, "10", stored.RemainingAmount.String())
	assert.True(t, stored.RemainingAmount.Equal(stored.NetAmount.Sub(ledger.SumPayments(stored.Payments))))
}

func TestRepository_DeletePayment(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	inv, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("200")})
	require.NoError(t, err)

	inv, err = repo.AddPayment(inv.ID, cash("200"))
	require.NoError(t, err)
	require.Equal(t, entities.PaymentStatusPaid, inv.PaymentStatus)

	inv, err = repo.DeletePayment(inv.Payments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusUnpaid, inv.PaymentStatus)
	assert.Equal(t, "200", inv.RemainingAmount.String())

	_, err = repo.DeletePayment(inv.ID + 1000)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRepository_Update_Discount(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	inv, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("300")})
	require.NoError(t, err)
	_, err = repo.AddPayment(inv.ID, cash("200"))
	require.NoError(t, err)

	_, err = repo.Update(inv.ID, UpdateRequest{DiscountAmount: decp("150")})
	assert.ErrorIs(t, err, ErrDiscountBelowPaid)

	notes := "family discount"
	updated, err := repo.Update(inv.ID, UpdateRequest{DiscountAmount: decp("100"), Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusPaid, updated.PaymentStatus)
	assert.True(t, updated.RemainingAmount.IsZero())
	assert.Equal(t, "33.33", updated.DiscountPercentage.StringFixed(2))

	stored, err := repo.GetByID(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "family discount", stored.Notes)
	assert.Equal(t, entities.PaymentStatusPaid, stored.PaymentStatus)
}

func TestRepository_Cancel(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	paid, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("50")})
	require.NoError(t, err)
	_, err = repo.AddPayment(paid.ID, cash("10"))
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Cancel(paid.ID), ErrInvoiceHasPayment)

	void, err := repo.Create(CreateRequest{PatientID: patientID, Total: dec("80")})
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(void.ID))

	_, err = repo.AddPayment(void.ID, cash("10"))
	assert.ErrorIs(t, err, ErrInvoiceCancelled)

	unpaid, err := repo.Unpaid()
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, paid.ID, unpaid[0].ID)

	debts, err := repo.TotalDebts()
	require.NoError(t, err)
	assert.Equal(t, "40", debts.String())
}

func TestRepository_RevenueAndRanges(t *testing.T) {
	repo, _, patientID := setupTestDB(t)
	march := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

	inv, err := repo.Create(CreateRequest{PatientID: patientID, InvoiceDate: march, Total: dec("500")})
	require.NoError(t, err)
	_, err = repo.AddPayment(inv.ID, &entities.Payment{Amount: dec("120.50"), PaymentDate: march})
	require.NoError(t, err)
	_, err = repo.AddPayment(inv.ID, &entities.Payment{Amount: dec("79.50"), PaymentDate: march.AddDate(0, 1, 0)})
	require.NoError(t, err)

	revenue, err := repo.TotalRevenue("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, "120.5", revenue.String())

	inRange, err := repo.ByDateRange("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.True(t, strings.HasPrefix(inRange[0].Number, "INV-20260310-"))

	forPatient, err := repo.ForPatient(patientID)
	require.NoError(t, err)
	assert.Len(t, forPatient, 1)
}
