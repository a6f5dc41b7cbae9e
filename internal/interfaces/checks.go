package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/clinicmgr/clinic/internal/audit"
	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/backup"
	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/database/appointments"
	"github.com/clinicmgr/clinic/internal/database/documents"
	"github.com/clinicmgr/clinic/internal/database/inventory"
	"github.com/clinicmgr/clinic/internal/database/invoices"
	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/database/prescriptions"
	"github.com/clinicmgr/clinic/internal/database/surgeries"
	"github.com/clinicmgr/clinic/internal/database/users"
	"github.com/clinicmgr/clinic/internal/database/visits"
	"github.com/clinicmgr/clinic/internal/exporters"
	"github.com/clinicmgr/clinic/internal/http"
	"github.com/clinicmgr/clinic/internal/reports"
	"github.com/clinicmgr/clinic/internal/scheduler"
	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/storage"
	"github.com/clinicmgr/clinic/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ http.PatientStore = (*patients.Repository)(nil)
var _ http.VisitStore = (*visits.Repository)(nil)
var _ http.InvoiceStore = (*invoices.Repository)(nil)
var _ http.InventoryStore = (*inventory.Repository)(nil)
var _ http.AppointmentStore = (*appointments.Repository)(nil)
var _ http.SurgeryStore = (*surgeries.Repository)(nil)
var _ http.PrescriptionStore = (*prescriptions.Repository)(nil)
var _ http.DocumentStore = (*documents.Repository)(nil)
var _ http.UserStore = (*users.Repository)(nil)
var _ auth.UserRepository = (*users.Repository)(nil)

// Settings
var _ http.SettingsStore = (*settingsstore.SettingsStore)(nil)
var _ scheduler.BackupSettings = (*settingsstore.SettingsStore)(nil)

// Health
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Reporting and Export
// =============================================================================

var _ http.ReportStore = (*reports.Reports)(nil)
var _ exporters.MonthlyReporter = (*reports.Reports)(nil)
var _ http.ExportService = (*exporters.DatabaseExporter)(nil)
var _ http.ReceiptRenderer = (*exporters.DatabaseExporter)(nil)

var _ exporters.PatientSource = (*patients.Repository)(nil)
var _ exporters.VisitSource = (*visits.Repository)(nil)
var _ exporters.InvoiceSource = (*invoices.Repository)(nil)
var _ exporters.InventorySource = (*inventory.Repository)(nil)

// =============================================================================
// Activity Log
// =============================================================================

var _ http.ActivityLogger = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ http.Snapshotter = (*audit.Archiver)(nil)
var _ auth.Auditor = (*audit.Service)(nil)
var _ tasks.BackupAuditor = (*audit.Service)(nil)
var _ tasks.SystemAuditor = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

// =============================================================================
// Backups and Background Work
// =============================================================================

var _ http.BackupManager = (*backup.Manager)(nil)
var _ tasks.Backupper = (*backup.Manager)(nil)
var _ http.BackupScheduler = (*scheduler.BackupScheduler)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ tasks.InventoryChecker = (*inventory.Repository)(nil)
var _ tasks.ReminderSource = (*appointments.Repository)(nil)

// =============================================================================
// Document Storage
// =============================================================================

var _ storage.Client = (*storage.Local)(nil)
