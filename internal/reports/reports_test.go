package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/database/appointments"
	"github.com/clinicmgr/clinic/internal/database/inventory"
	"github.com/clinicmgr/clinic/internal/database/invoices"
	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/database/visits"
	"github.com/clinicmgr/clinic/internal/entities"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seed builds a small clinic day: two active patients and one inactive, three
// visits today (one cancelled), two invoices this month and some stock.
func seed(t *testing.T) *Reports {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	patientRepo := patients.NewRepository(db.DB)
	dob := func(y int, m time.Month, d int) datatypes.Date {
		return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}
	p1 := &entities.Patient{FirstName: "Omar", LastName: "Said", Gender: entities.GenderMale, DateOfBirth: dob(1990, 5, 1), RegistrationDate: now}
	p2 := &entities.Patient{FirstName: "Laila", LastName: "Hassan", Gender: entities.GenderFemale, DateOfBirth: dob(2015, 1, 1), RegistrationDate: now}
	p3 := &entities.Patient{FirstName: "Aya", LastName: "Nour", Gender: entities.GenderFemale, DateOfBirth: dob(1950, 1, 1), RegistrationDate: now.AddDate(-1, 0, 0)}
	for _, p := range []*entities.Patient{p1, p2, p3} {
		require.NoError(t, patientRepo.Add(p))
	}
	require.NoError(t, patientRepo.SoftDelete(p3.ID))

	visitRepo := visits.NewRepository(db.DB)
	waiting := &entities.Visit{PatientID: p1.ID, VisitDate: now}
	done := &entities.Visit{PatientID: p2.ID, VisitDate: now, VisitType: entities.VisitTypeConsultation}
	cancelled := &entities.Visit{PatientID: p2.ID, VisitDate: now}
	for _, v := range []*entities.Visit{done, waiting, cancelled} {
		require.NoError(t, visitRepo.Add(v))
	}
	_, err = visitRepo.Start(done.ID)
	require.NoError(t, err)
	_, err = visitRepo.Complete(done.ID)
	require.NoError(t, err)
	_, err = visitRepo.Cancel(cancelled.ID)
	require.NoError(t, err)

	invoiceRepo := invoices.NewRepository(db.DB)
	discount := dec("50")
	inv1, err := invoiceRepo.Create(invoices.CreateRequest{
		PatientID: p1.ID, InvoiceDate: now, InvoiceType: "examination", Total: dec("300"), DiscountAmount: &discount,
	})
	require.NoError(t, err)
	_, err = invoiceRepo.AddPayment(inv1.ID, &entities.Payment{Amount: dec("100"), Method: entities.PaymentMethodCash, PaymentDate: now})
	require.NoError(t, err)

	earlier := now.AddDate(0, 0, -5)
	inv2, err := invoiceRepo.Create(invoices.CreateRequest{
		PatientID: p2.ID, InvoiceDate: earlier, InvoiceType: "procedure", Total: dec("200"),
	})
	require.NoError(t, err)
	_, err = invoiceRepo.AddPayment(inv2.ID, &entities.Payment{Amount: dec("200"), Method: entities.PaymentMethodCard, PaymentDate: earlier})
	require.NoError(t, err)

	stock := inventory.NewRepository(db.DB)
	soon := now.AddDate(0, 0, 30)
	later := now.AddDate(2, 0, 0)
	require.NoError(t, stock.AddItem(&entities.InventoryItem{Code: "GLV", Name: "Gloves", Quantity: 2, MinimumStock: 5, UnitPrice: dec("1.5"), ExpiryDate: &later}))
	require.NoError(t, stock.AddItem(&entities.InventoryItem{Code: "AMX", Name: "Amoxicillin", Quantity: 40, MinimumStock: 10, UnitPrice: dec("3"), ExpiryDate: &soon}))

	appts := appointments.NewRepository(db.DB)
	require.NoError(t, appts.Add(&entities.Appointment{
		PatientID: p1.ID, Day: now.Format(entities.DayLayout), Time: datatypes.NewTime(11, 0, 0, 0),
	}))
	require.NoError(t, appts.Add(&entities.Appointment{
		PatientID: p2.ID, Day: now.AddDate(0, 0, 1).Format(entities.DayLayout), Time: datatypes.NewTime(9, 30, 0, 0),
		Status: entities.AppointmentStatusCancelled,
	}))

	sqlDB, err := db.SQL()
	require.NoError(t, err)
	return New(sqlDB, 90)
}

func TestReports_Dashboard(t *testing.T) {
	r := seed(t)

	d, err := r.Dashboard(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-15", d.Day)
	assert.Equal(t, int64(2), d.ActivePatients)
	assert.Equal(t, int64(2), d.TodayVisits)
	assert.Equal(t, int64(1), d.WaitingInQueue)
	assert.Equal(t, int64(1), d.TodayAppointments)
	assert.Equal(t, int64(1), d.LowStockCount)
	assert.Equal(t, int64(1), d.ExpiringSoonCount)
	assert.True(t, dec("300").Equal(d.MonthRevenue), "month revenue %s", d.MonthRevenue)
	assert.True(t, dec("150").Equal(d.TotalDebts), "total debts %s", d.TotalDebts)
}

func TestReports_Daily(t *testing.T) {
	r := seed(t)

	rep, err := r.Daily(context.Background(), "2026-03-15")
	require.NoError(t, err)

	assert.Equal(t, int64(2), rep.Visits)
	assert.Equal(t, int64(1), rep.VisitsByStatus["cancelled"])
	assert.Equal(t, int64(2), rep.NewPatients)
	assert.Equal(t, int64(1), rep.Appointments)
	assert.Equal(t, int64(1), rep.InvoicesIssued)
	assert.True(t, dec("250").Equal(rep.InvoicedAmount))
	assert.True(t, dec("100").Equal(rep.Revenue))
	assert.True(t, dec("100").Equal(rep.PaymentsByMethod["cash"]))

	_, err = r.Daily(context.Background(), "15/03/2026")
	assert.Error(t, err)
}

func TestReports_Monthly(t *testing.T) {
	r := seed(t)

	rep, err := r.Monthly(context.Background(), 2026, time.March)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01", rep.From)
	assert.Equal(t, "2026-03-31", rep.To)
	assert.Equal(t, int64(2), rep.Visits)
	assert.Equal(t, int64(2), rep.NewPatients)
	assert.Equal(t, int64(2), rep.InvoicesIssued)
	assert.True(t, dec("450").Equal(rep.InvoicedAmount), "invoiced %s", rep.InvoicedAmount)
	assert.True(t, dec("50").Equal(rep.Discounts))
	assert.True(t, dec("300").Equal(rep.Revenue))
	assert.True(t, dec("150").Equal(rep.OutstandingDebts))
	assert.True(t, dec("100").Equal(rep.RevenueByType["examination"]))
	assert.True(t, dec("200").Equal(rep.RevenueByType["procedure"]))
	assert.Equal(t, int64(1), rep.VisitTypes["consultation"])
	assert.Equal(t, int64(1), rep.VisitTypes["examination"])

	require.Len(t, rep.DailyRevenue, 2)
	assert.Equal(t, "2026-03-10", rep.DailyRevenue[0].Day)
	assert.Equal(t, "2026-03-15", rep.DailyRevenue[1].Day)

	_, err = r.Monthly(context.Background(), 2026, 13)
	assert.Error(t, err)
}

func TestReports_PatientBreakdowns(t *testing.T) {
	r := seed(t)
	ctx := context.Background()

	genders, err := r.PatientsByGender(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"male": 1, "female": 1}, genders)

	ages, err := r.PatientsByAgeGroup(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ages["<18"])
	assert.Equal(t, int64(1), ages["18-35"])
	assert.Equal(t, int64(0), ages[">65"], "inactive patients are excluded")
	assert.Len(t, ages, len(AgeGroups))
}

func TestReports_AppointmentStats(t *testing.T) {
	r := seed(t)

	stats, err := r.AppointmentStats(context.Background(), "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["booked"])
	assert.Equal(t, int64(1), stats["cancelled"])
}

func TestAgeGroup(t *testing.T) {
	tests := map[int]string{0: "<18", 17: "<18", 18: "18-35", 35: "18-35", 36: "36-50", 50: "36-50", 51: "51-65", 65: "51-65", 66: ">65"}
	for age, want := range tests {
		assert.Equal(t, want, AgeGroup(age), "age %d", age)
	}
}
