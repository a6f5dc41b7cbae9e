package http

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/clinicmgr/clinic/internal/backup"
	auditrepo "github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/database/invoices"
	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/database/visits"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/reports"
	"github.com/clinicmgr/clinic/internal/settingsstore"
)

// Each controller declares the narrow store it needs. The concrete
// repositories are checked against these in internal/interfaces.

type PatientStore interface {
	Add(p *entities.Patient) error
	GetByID(id uint) (*entities.Patient, error)
	GetByCode(code string) (*entities.Patient, error)
	List(activeOnly bool) ([]entities.Patient, error)
	Search(term string) ([]entities.Patient, error)
	AdvancedSearch(f patients.SearchFilter) ([]entities.Patient, error)
	Update(p *entities.Patient) error
	SoftDelete(id uint) error
	Restore(id uint) error
	BulkSoftDelete(ids []uint) (int64, error)
	BulkRestore(ids []uint) (int64, error)
	HardDelete(id uint) ([]entities.MedicalDocument, error)
	Recent(n int) ([]entities.Patient, error)
	GetMedicalHistory(patientID uint) (*entities.MedicalHistory, error)
	UpsertMedicalHistory(h *entities.MedicalHistory) error
	WithDebts() ([]patients.PatientDebt, error)
}

type VisitStore interface {
	Add(v *entities.Visit) error
	GetByID(id uint) (*entities.Visit, error)
	ForPatient(patientID uint) ([]entities.Visit, error)
	Queue(day string) ([]entities.Visit, error)
	ByDateRange(from, to string) ([]entities.Visit, error)
	Current(day string) (*entities.Visit, error)
	Update(v *entities.Visit) error
	Delete(id uint) error
	Transition(id uint, to entities.VisitStatus) (*entities.Visit, error)
	CallNext(day string) (*visits.CallResult, error)
	CountByStatus(day string) (map[entities.VisitStatus]int64, error)
}

type InvoiceStore interface {
	Create(req invoices.CreateRequest) (*entities.Invoice, error)
	GetByID(id uint) (*entities.Invoice, error)
	GetByNumber(number string) (*entities.Invoice, error)
	ForPatient(patientID uint) ([]entities.Invoice, error)
	Unpaid() ([]entities.Invoice, error)
	ByDateRange(from, to string) ([]entities.Invoice, error)
	Update(id uint, req invoices.UpdateRequest) (*entities.Invoice, error)
	Cancel(id uint) error
	AddPayment(invoiceID uint, p *entities.Payment) (*entities.Invoice, error)
	DeletePayment(paymentID uint) (*entities.Invoice, error)
	Payments(invoiceID uint) ([]entities.Payment, error)
}

type InventoryStore interface {
	AddItem(item *entities.InventoryItem) error
	GetByID(id uint) (*entities.InventoryItem, error)
	List(activeOnly bool) ([]entities.InventoryItem, error)
	ByCategory(category string) ([]entities.InventoryItem, error)
	Search(term string) ([]entities.InventoryItem, error)
	Categories() ([]string, error)
	Update(item *entities.InventoryItem) error
	SoftDelete(id uint) error
	AddTransaction(t *entities.InventoryTransaction) (*entities.InventoryItem, error)
	Transactions(itemID uint) ([]entities.InventoryTransaction, error)
	LowStock() ([]entities.InventoryItem, error)
	ExpiringSoon(now time.Time, days int) ([]entities.InventoryItem, error)
	Expired(now time.Time) ([]entities.InventoryItem, error)
	TotalValue() (decimal.Decimal, error)
}

type AppointmentStore interface {
	Add(a *entities.Appointment) error
	AvailableSlots(day string, doctorID *uint, start, end datatypes.Time, step time.Duration) ([]string, error)
	GetByID(id uint) (*entities.Appointment, error)
	ByDate(day string) ([]entities.Appointment, error)
	ByDateRange(from, to string) ([]entities.Appointment, error)
	ForPatient(patientID uint) ([]entities.Appointment, error)
	Upcoming(now time.Time, days int) ([]entities.Appointment, error)
	Update(a *entities.Appointment) error
	UpdateStatus(id uint, status entities.AppointmentStatus) error
	Cancel(id uint) error
	Delete(id uint) error
}

type SurgeryStore interface {
	Add(s *entities.Surgery) error
	GetByID(id uint) (*entities.Surgery, error)
	ForPatient(patientID uint) ([]entities.Surgery, error)
	Upcoming(now time.Time, days int) ([]entities.Surgery, error)
	ByDateRange(from, to time.Time) ([]entities.Surgery, error)
	Update(s *entities.Surgery) error
	UpdateStatus(id uint, status entities.SurgeryStatus, at time.Time) error
	Delete(id uint) error
}

type PrescriptionStore interface {
	Create(p *entities.Prescription) error
	GetByID(id uint) (*entities.Prescription, error)
	ForPatient(patientID uint) ([]entities.Prescription, error)
	ForVisit(visitID uint) ([]entities.Prescription, error)
	Delete(id uint) error
}

type DocumentStore interface {
	Add(doc *entities.MedicalDocument) error
	GetByID(id uint) (*entities.MedicalDocument, error)
	ForPatient(patientID uint, docType string) ([]entities.MedicalDocument, error)
	Delete(id uint) (*entities.MedicalDocument, error)
}

type UserStore interface {
	GetByID(id uint) (*entities.User, error)
	List(activeOnly bool) ([]entities.User, error)
	ByRole(role entities.UserRole) ([]entities.User, error)
	Update(user *entities.User) error
	SetActive(id uint, active bool) error
	UsernameAvailable(username string, exceptID uint) (bool, error)
}

type SettingsStore interface {
	ClinicProfile() (settingsstore.ClinicProfile, error)
	SetClinicProfile(p settingsstore.ClinicProfile) error
	BackupScheduleInfo() settingsstore.BackupScheduleInfo
	BackupStatus() settingsstore.BackupStatus
	SetBackupEnabled(enabled bool) error
	SetBackupSchedule(schedule string) error
	ClearBackupSchedule() error
	SetBackupStatus(status, message, file string) error
	FeeFor(visitType entities.VisitType) decimal.Decimal
}

type BackupManager interface {
	Backup(ctx context.Context) (*backup.Info, error)
	Restore(ctx context.Context, path string) error
	Resolve(name string) (string, error)
	List() ([]backup.Info, error)
}

type ReportStore interface {
	Dashboard(ctx context.Context, now time.Time) (*reports.Dashboard, error)
	Daily(ctx context.Context, day string) (*reports.DailyReport, error)
	Monthly(ctx context.Context, year int, month time.Month) (*reports.MonthlyReport, error)
	RevenueByType(ctx context.Context, from, to string) (map[string]decimal.Decimal, error)
	VisitTypeStats(ctx context.Context, from, to string) (map[string]int64, error)
	PatientsByGender(ctx context.Context) (map[string]int64, error)
	PatientsByAgeGroup(ctx context.Context, now time.Time) (map[string]int64, error)
	AppointmentStats(ctx context.Context, from, to string) (map[string]int64, error)
}

// ActivityLogger records what staff changed. Implementations must not block.
type ActivityLogger interface {
	LogActivity(userID uint, eventType entities.AuditEventType, entityType string, recordID uint, description string, details any)
	LogPayment(userID, invoiceID uint, invoiceNumber string, amount decimal.Decimal, method entities.PaymentMethod)
	LogDelete(userID uint, entityType string, entityID uint, entityName string, permanent bool)
	LogSettings(userID uint, action, description string)
	LogBackup(userID uint, action, file string, err error)
	LogExport(userID uint, kind, file string, rows int, err error)
}

type AuditReader interface {
	Events(f auditrepo.Filter) ([]entities.AuditEvent, int64, error)
	ForRecord(entityType string, id uint) ([]entities.AuditEvent, error)
}

// Snapshotter keeps a copy of a record before it is removed for good.
type Snapshotter interface {
	Snapshot(kind string, userID uint, record any) (string, error)
}

type nopActivityLogger struct{}

func (nopActivityLogger) LogActivity(uint, entities.AuditEventType, string, uint, string, any) {}
func (nopActivityLogger) LogPayment(uint, uint, string, decimal.Decimal, entities.PaymentMethod) {}
func (nopActivityLogger) LogDelete(uint, string, uint, string, bool)                            {}
func (nopActivityLogger) LogSettings(uint, string, string)                                      {}
func (nopActivityLogger) LogBackup(uint, string, string, error)                                 {}
func (nopActivityLogger) LogExport(uint, string, string, int, error)                            {}
