package http

import (
	"github.com/rs/zerolog"

	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/storage"
)

// RouterConfig contains all dependencies and configuration needed to
// create the HTTP router. Optional parts are skipped when nil.
type RouterConfig struct {
	Logger  zerolog.Logger
	Version string

	// Health
	Database     Pinger
	HealthChecks map[string]HealthCheck

	// Authentication
	AuthConfig     config.Auth
	AuthService    *auth.Service
	AuthController *auth.AuthController
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	CSRFSecret     []byte

	// Records
	Patients      PatientStore
	Visits        VisitStore
	Invoices      InvoiceStore
	Inventory     InventoryStore
	Appointments  AppointmentStore
	Surgeries     SurgeryStore
	Prescriptions PrescriptionStore
	Documents     DocumentStore
	Users         UserStore

	// Document files
	Files          storage.Client
	MaxUploadBytes int64

	// Settings, reporting and exports
	Settings SettingsStore
	Reports  ReportStore
	Exports  ExportService
	Receipts ReceiptRenderer
	Clinic   config.Clinic

	// Backups
	Backups         BackupManager
	BackupScheduler BackupScheduler

	// Activity log
	Activity ActivityLogger
	Audit    AuditReader
	Archiver Snapshotter

	// Task queue client (optional)
	TaskClient TaskQueue
}
