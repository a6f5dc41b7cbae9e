package exporters

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/reports"
	"github.com/clinicmgr/clinic/internal/settingsstore"
)

type PatientSource interface {
	List(activeOnly bool) ([]entities.Patient, error)
	WithDebts() ([]patients.PatientDebt, error)
}

type VisitSource interface {
	ByDateRange(from, to string) ([]entities.Visit, error)
}

type InvoiceSource interface {
	ByDateRange(from, to string) ([]entities.Invoice, error)
	GetByID(id uint) (*entities.Invoice, error)
}

type InventorySource interface {
	List(activeOnly bool) ([]entities.InventoryItem, error)
}

type MonthlyReporter interface {
	Monthly(ctx context.Context, year int, month time.Month) (*reports.MonthlyReport, error)
}

type ProfileSource interface {
	ClinicProfile() (settingsstore.ClinicProfile, error)
}

// Sources groups the readers an export pulls from.
type Sources struct {
	Patients  PatientSource
	Visits    VisitSource
	Invoices  InvoiceSource
	Inventory InventorySource
	Reports   MonthlyReporter
	Settings  ProfileSource
}

// Range selects the records of date-bound exports. From and To are
// YYYY-MM-DD; the monthly report uses the month containing From.
type Range struct {
	From string
	To   string
}

// DefaultRange is the current calendar month up to today.
func DefaultRange(now time.Time) Range {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Range{From: start.Format(entities.DayLayout), To: now.Format(entities.DayLayout)}
}

func (r Range) validate() error {
	from, err := time.Parse(entities.DayLayout, r.From)
	if err != nil {
		return fmt.Errorf("invalid from date %q", r.From)
	}
	to, err := time.Parse(entities.DayLayout, r.To)
	if err != nil {
		return fmt.Errorf("invalid to date %q", r.To)
	}
	if to.Before(from) {
		return fmt.Errorf("range end %s is before start %s", r.To, r.From)
	}
	return nil
}

// DatabaseExporter loads records for an export kind and writes them either
// to a file in the export directory or to a stream.
type DatabaseExporter struct {
	sources  Sources
	exporter *Exporter
}

func NewDatabaseExporter(sources Sources, exporter *Exporter) *DatabaseExporter {
	return &DatabaseExporter{sources: sources, exporter: exporter}
}

// FileName is the name a fresh export of kind gets.
func (d *DatabaseExporter) FileName(kind Kind) string {
	return d.exporter.FileName(kind)
}

// Export writes kind to a new file in the export directory.
func (d *DatabaseExporter) Export(ctx context.Context, kind Kind, rng Range) (ExportResult, error) {
	write, err := d.writer(ctx, kind, rng)
	if err != nil {
		return ExportResult{}, err
	}
	return d.exporter.writeFile(d.exporter.FileName(kind), write)
}

// Stream writes kind to w and returns the number of rows written.
func (d *DatabaseExporter) Stream(ctx context.Context, w io.Writer, kind Kind, rng Range) (int, error) {
	write, err := d.writer(ctx, kind, rng)
	if err != nil {
		return 0, err
	}
	return write(w)
}

// Receipt renders the receipt of invoice id.
func (d *DatabaseExporter) Receipt(invoiceID uint) (string, *entities.Invoice, error) {
	inv, err := d.sources.Invoices.GetByID(invoiceID)
	if err != nil {
		return "", nil, err
	}
	profile, err := d.sources.Settings.ClinicProfile()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load clinic profile: %w", err)
	}
	return GenerateReceipt(inv, profile), inv, nil
}

// writer loads the data up front so a failed query never leaves a partial file.
func (d *DatabaseExporter) writer(ctx context.Context, kind Kind, rng Range) (func(io.Writer) (int, error), error) {
	switch kind {
	case KindPatients:
		list, err := d.sources.Patients.List(false)
		if err != nil {
			return nil, fmt.Errorf("failed to load patients: %w", err)
		}
		return func(w io.Writer) (int, error) { return WritePatientsCSV(w, list) }, nil

	case KindDebts:
		list, err := d.sources.Patients.WithDebts()
		if err != nil {
			return nil, fmt.Errorf("failed to load debts: %w", err)
		}
		return func(w io.Writer) (int, error) { return WriteDebtsCSV(w, list) }, nil

	case KindInventory:
		list, err := d.sources.Inventory.List(true)
		if err != nil {
			return nil, fmt.Errorf("failed to load inventory: %w", err)
		}
		return func(w io.Writer) (int, error) { return WriteInventoryCSV(w, list) }, nil

	case KindVisits:
		if err := rng.validate(); err != nil {
			return nil, err
		}
		list, err := d.sources.Visits.ByDateRange(rng.From, rng.To)
		if err != nil {
			return nil, fmt.Errorf("failed to load visits: %w", err)
		}
		return func(w io.Writer) (int, error) { return WriteVisitsCSV(w, list) }, nil

	case KindInvoices:
		if err := rng.validate(); err != nil {
			return nil, err
		}
		list, err := d.sources.Invoices.ByDateRange(rng.From, rng.To)
		if err != nil {
			return nil, fmt.Errorf("failed to load invoices: %w", err)
		}
		return func(w io.Writer) (int, error) { return WriteInvoicesCSV(w, list) }, nil

	case KindMonthlyReport:
		month, err := time.Parse(entities.DayLayout, rng.From)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q", rng.From)
		}
		rep, err := d.sources.Reports.Monthly(ctx, month.Year(), month.Month())
		if err != nil {
			return nil, fmt.Errorf("failed to build monthly report: %w", err)
		}
		profile, err := d.sources.Settings.ClinicProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to load clinic profile: %w", err)
		}
		return func(w io.Writer) (int, error) {
			_, err := io.WriteString(w, GenerateMonthlyReport(rep, profile))
			return len(rep.DailyRevenue), err
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
