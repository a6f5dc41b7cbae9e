// Package reports computes dashboard figures and period reports with plain
// SQL over the clinic database. Money columns are summed in Go with decimal
// arithmetic so totals never pass through floating point.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/clinicmgr/clinic/internal/entities"
)

// Age bands used by PatientsByAgeGroup, youngest first.
var AgeGroups = []string{"<18", "18-35", "36-50", "51-65", ">65"}

type Reports struct {
	db                *sqlx.DB
	expiryWarningDays int
}

// New wraps an open clinic database connection.
func New(db *sql.DB, expiryWarningDays int) *Reports {
	if expiryWarningDays <= 0 {
		expiryWarningDays = 90
	}
	return &Reports{db: sqlx.NewDb(db, "sqlite3"), expiryWarningDays: expiryWarningDays}
}

type Dashboard struct {
	Day               string          `json:"day"`
	ActivePatients    int64           `json:"active_patients"`
	TodayVisits       int64           `json:"today_visits"`
	WaitingInQueue    int64           `json:"waiting_in_queue"`
	TodayAppointments int64           `json:"today_appointments"`
	MonthRevenue      decimal.Decimal `json:"month_revenue"`
	TotalDebts        decimal.Decimal `json:"total_debts"`
	LowStockCount     int64           `json:"low_stock_count"`
	ExpiringSoonCount int64           `json:"expiring_soon_count"`
}

type DailyReport struct {
	Day              string                     `json:"day"`
	Visits           int64                      `json:"visits"`
	VisitsByStatus   map[string]int64           `json:"visits_by_status"`
	NewPatients      int64                      `json:"new_patients"`
	Appointments     int64                      `json:"appointments"`
	InvoicesIssued   int64                      `json:"invoices_issued"`
	InvoicedAmount   decimal.Decimal            `json:"invoiced_amount"`
	Revenue          decimal.Decimal            `json:"revenue"`
	PaymentsByMethod map[string]decimal.Decimal `json:"payments_by_method"`
}

type MonthlyReport struct {
	Year             int                        `json:"year"`
	Month            time.Month                 `json:"month"`
	From             string                     `json:"from"`
	To               string                     `json:"to"`
	Visits           int64                      `json:"visits"`
	NewPatients      int64                      `json:"new_patients"`
	InvoicesIssued   int64                      `json:"invoices_issued"`
	InvoicedAmount   decimal.Decimal            `json:"invoiced_amount"`
	Discounts        decimal.Decimal            `json:"discounts"`
	Revenue          decimal.Decimal            `json:"revenue"`
	OutstandingDebts decimal.Decimal            `json:"outstanding_debts"`
	VisitTypes       map[string]int64           `json:"visit_types"`
	RevenueByType    map[string]decimal.Decimal `json:"revenue_by_type"`
	DailyRevenue     []DayAmount                `json:"daily_revenue"`
}

type DayAmount struct {
	Day    string          `json:"day" db:"payment_day"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

type countRow struct {
	Key   string `db:"k"`
	Count int64  `db:"n"`
}

type amountRow struct {
	Key    string          `db:"k"`
	Amount decimal.Decimal `db:"amount"`
}

// Dashboard returns the headline figures for the day containing now.
func (r *Reports) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	day := now.Format(entities.DayLayout)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(entities.DayLayout)

	d := &Dashboard{Day: day}

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&d.ActivePatients, `SELECT COUNT(*) FROM patients WHERE is_active = 1`, nil},
		{&d.TodayVisits, `SELECT COUNT(*) FROM visits WHERE queue_day = ? AND status <> ?`, []any{day, entities.VisitStatusCancelled}},
		{&d.WaitingInQueue, `SELECT COUNT(*) FROM visits WHERE queue_day = ? AND status = ?`, []any{day, entities.VisitStatusWaiting}},
		{&d.TodayAppointments, `SELECT COUNT(*) FROM appointments WHERE appointment_date = ? AND status IN (?, ?, ?)`,
			[]any{day, entities.AppointmentStatusBooked, entities.AppointmentStatusConfirmed, entities.AppointmentStatusCompleted}},
		{&d.LowStockCount, `SELECT COUNT(*) FROM inventory_items WHERE is_active = 1 AND quantity <= minimum_stock`, nil},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dst, c.query, c.args...); err != nil {
			return nil, fmt.Errorf("dashboard count: %w", err)
		}
	}

	var err error
	if d.MonthRevenue, err = r.revenue(ctx, monthStart, day); err != nil {
		return nil, err
	}
	if d.TotalDebts, err = r.totalDebts(ctx); err != nil {
		return nil, err
	}
	if d.ExpiringSoonCount, err = r.expiringSoon(ctx, now); err != nil {
		return nil, err
	}
	return d, nil
}

// Daily summarises one calendar day (YYYY-MM-DD).
func (r *Reports) Daily(ctx context.Context, day string) (*DailyReport, error) {
	if _, err := time.Parse(entities.DayLayout, day); err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", day, err)
	}

	rep := &DailyReport{Day: day}

	byStatus, err := r.countBy(ctx, `SELECT status AS k, COUNT(*) AS n FROM visits WHERE queue_day = ? GROUP BY status`, day)
	if err != nil {
		return nil, err
	}
	rep.VisitsByStatus = byStatus
	for status, n := range byStatus {
		if status != string(entities.VisitStatusCancelled) {
			rep.Visits += n
		}
	}

	if rep.NewPatients, err = r.newPatients(ctx, day, day); err != nil {
		return nil, err
	}
	err = r.db.GetContext(ctx, &rep.Appointments,
		`SELECT COUNT(*) FROM appointments WHERE appointment_date = ? AND status <> ?`, day, entities.AppointmentStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	rep.InvoicesIssued, rep.InvoicedAmount, _, err = r.invoiced(ctx, day, day)
	if err != nil {
		return nil, err
	}

	rows, err := r.amounts(ctx, `SELECT method AS k, amount FROM payments WHERE payment_day = ?`, day)
	if err != nil {
		return nil, err
	}
	rep.Revenue = decimal.Zero
	rep.PaymentsByMethod = make(map[string]decimal.Decimal)
	for _, row := range rows {
		rep.Revenue = rep.Revenue.Add(row.Amount)
		rep.PaymentsByMethod[row.Key] = rep.PaymentsByMethod[row.Key].Add(row.Amount)
	}
	return rep, nil
}

// Monthly summarises a calendar month.
func (r *Reports) Monthly(ctx context.Context, year int, month time.Month) (*MonthlyReport, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	from := start.Format(entities.DayLayout)
	to := start.AddDate(0, 1, -1).Format(entities.DayLayout)

	rep := &MonthlyReport{Year: year, Month: month, From: from, To: to}

	var err error
	if rep.Visits, err = r.countVisits(ctx, from, to); err != nil {
		return nil, err
	}
	if rep.NewPatients, err = r.newPatients(ctx, from, to); err != nil {
		return nil, err
	}
	if rep.InvoicesIssued, rep.InvoicedAmount, rep.Discounts, err = r.invoiced(ctx, from, to); err != nil {
		return nil, err
	}
	if rep.OutstandingDebts, err = r.sumAmounts(ctx,
		`SELECT '' AS k, remaining_amount AS amount FROM invoices
		 WHERE invoice_day BETWEEN ? AND ? AND remaining_amount > 0 AND payment_status <> ?`,
		from, to, entities.PaymentStatusCancelled); err != nil {
		return nil, err
	}
	if rep.VisitTypes, err = r.VisitTypeStats(ctx, from, to); err != nil {
		return nil, err
	}
	if rep.RevenueByType, err = r.RevenueByType(ctx, from, to); err != nil {
		return nil, err
	}

	rows, err := r.amounts(ctx, `SELECT payment_day AS k, amount FROM payments WHERE payment_day BETWEEN ? AND ?`, from, to)
	if err != nil {
		return nil, err
	}
	perDay := make(map[string]decimal.Decimal)
	rep.Revenue = decimal.Zero
	for _, row := range rows {
		perDay[row.Key] = perDay[row.Key].Add(row.Amount)
		rep.Revenue = rep.Revenue.Add(row.Amount)
	}
	rep.DailyRevenue = make([]DayAmount, 0, len(perDay))
	for day, amount := range perDay {
		rep.DailyRevenue = append(rep.DailyRevenue, DayAmount{Day: day, Amount: amount})
	}
	sort.Slice(rep.DailyRevenue, func(i, j int) bool { return rep.DailyRevenue[i].Day < rep.DailyRevenue[j].Day })

	return rep, nil
}

// RevenueByType sums the paid amount of invoices issued in [from, to],
// grouped by invoice type.
func (r *Reports) RevenueByType(ctx context.Context, from, to string) (map[string]decimal.Decimal, error) {
	rows, err := r.amounts(ctx,
		`SELECT invoice_type AS k, paid_amount AS amount FROM invoices
		 WHERE invoice_day BETWEEN ? AND ? AND payment_status <> ?`,
		from, to, entities.PaymentStatusCancelled)
	if err != nil {
		return nil, err
	}
	result := make(map[string]decimal.Decimal)
	for _, row := range rows {
		result[row.Key] = result[row.Key].Add(row.Amount)
	}
	return result, nil
}

// VisitTypeStats counts non-cancelled visits in [from, to] per visit type.
func (r *Reports) VisitTypeStats(ctx context.Context, from, to string) (map[string]int64, error) {
	return r.countBy(ctx,
		`SELECT visit_type AS k, COUNT(*) AS n FROM visits
		 WHERE queue_day BETWEEN ? AND ? AND status <> ? GROUP BY visit_type`,
		from, to, entities.VisitStatusCancelled)
}

func (r *Reports) PatientsByGender(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, `SELECT COALESCE(gender, '') AS k, COUNT(*) AS n FROM patients WHERE is_active = 1 GROUP BY gender`)
}

// PatientsByAgeGroup buckets active patients by completed years at now.
// Patients without a date of birth are not counted.
func (r *Reports) PatientsByAgeGroup(ctx context.Context, now time.Time) (map[string]int64, error) {
	var births []sql.NullTime
	err := r.db.SelectContext(ctx, &births,
		`SELECT date_of_birth FROM patients WHERE is_active = 1 AND date_of_birth IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load birth dates: %w", err)
	}

	result := make(map[string]int64, len(AgeGroups))
	for _, g := range AgeGroups {
		result[g] = 0
	}
	for _, b := range births {
		if !b.Valid || b.Time.IsZero() {
			continue
		}
		result[AgeGroup(entities.Patient{DateOfBirth: datatypes.Date(b.Time)}.Age(now))]++
	}
	return result, nil
}

// AgeGroup names the band containing age.
func AgeGroup(age int) string {
	switch {
	case age < 18:
		return "<18"
	case age <= 35:
		return "18-35"
	case age <= 50:
		return "36-50"
	case age <= 65:
		return "51-65"
	default:
		return ">65"
	}
}

// AppointmentStats counts appointments in [from, to] per status.
func (r *Reports) AppointmentStats(ctx context.Context, from, to string) (map[string]int64, error) {
	return r.countBy(ctx,
		`SELECT status AS k, COUNT(*) AS n FROM appointments
		 WHERE appointment_date BETWEEN ? AND ? GROUP BY status`, from, to)
}

func (r *Reports) countVisits(ctx context.Context, from, to string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM visits WHERE queue_day BETWEEN ? AND ? AND status <> ?`,
		from, to, entities.VisitStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// newPatients counts registrations on days [from, to].
func (r *Reports) newPatients(ctx context.Context, from, to string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM patients WHERE substr(registration_date, 1, 10) BETWEEN ? AND ?`, from, to)
	if err != nil {
		return 0, fmt.Errorf("count new patients: %w", err)
	}
	return n, nil
}

// invoiced returns the count, net amount and discount total of
// non-cancelled invoices issued in [from, to].
func (r *Reports) invoiced(ctx context.Context, from, to string) (int64, decimal.Decimal, decimal.Decimal, error) {
	var rows []struct {
		Net      decimal.Decimal `db:"net_amount"`
		Discount decimal.Decimal `db:"discount_amount"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT net_amount, discount_amount FROM invoices
		 WHERE invoice_day BETWEEN ? AND ? AND payment_status <> ?`,
		from, to, entities.PaymentStatusCancelled)
	if err != nil {
		return 0, decimal.Zero, decimal.Zero, fmt.Errorf("load invoices: %w", err)
	}
	net, discount := decimal.Zero, decimal.Zero
	for _, row := range rows {
		net = net.Add(row.Net)
		discount = discount.Add(row.Discount)
	}
	return int64(len(rows)), net, discount, nil
}

func (r *Reports) revenue(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, `SELECT '' AS k, amount FROM payments WHERE payment_day BETWEEN ? AND ?`, from, to)
}

func (r *Reports) totalDebts(ctx context.Context) (decimal.Decimal, error) {
	return r.sumAmounts(ctx,
		`SELECT '' AS k, remaining_amount AS amount FROM invoices WHERE remaining_amount > 0 AND payment_status <> ?`,
		entities.PaymentStatusCancelled)
}

func (r *Reports) expiringSoon(ctx context.Context, now time.Time) (int64, error) {
	var expiries []sql.NullTime
	err := r.db.SelectContext(ctx, &expiries,
		`SELECT expiry_date FROM inventory_items WHERE is_active = 1 AND expiry_date IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("load expiry dates: %w", err)
	}
	var n int64
	for _, e := range expiries {
		if !e.Valid {
			continue
		}
		t := e.Time
		if (entities.InventoryItem{ExpiryDate: &t}).IsExpiringSoon(now, r.expiryWarningDays) {
			n++
		}
	}
	return n, nil
}

func (r *Reports) countBy(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	var rows []countRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("grouped count: %w", err)
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Count
	}
	return result, nil
}

func (r *Reports) amounts(ctx context.Context, query string, args ...any) ([]amountRow, error) {
	var rows []amountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load amounts: %w", err)
	}
	return rows, nil
}

func (r *Reports) sumAmounts(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := r.amounts(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
