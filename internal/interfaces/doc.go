// Package interfaces documents the core abstractions used throughout the application.
//
// Controllers, tasks and schedulers each declare the narrow interface they
// need next to where it is used. The concrete types that satisfy them live in
// internal/database, internal/audit, internal/backup and friends. checks.go
// pins every pairing at compile time.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - PatientStore, VisitStore, InvoiceStore, InventoryStore (internal/http/stores.go)
//   - AppointmentStore, SurgeryStore, PrescriptionStore, DocumentStore (internal/http/stores.go)
//   - UserStore: staff records (internal/http/stores.go)
//   - UserRepository: credentials and lockout (internal/auth/service.go)
//   - SettingsStore: clinic profile and backup schedule (internal/http/stores.go)
//
// ## Reporting and Export
//
//   - ReportStore: dashboard and financial reports (internal/http/stores.go)
//   - ExportService, ReceiptRenderer: CSV and markdown output (internal/http)
//   - PatientSource, VisitSource, InvoiceSource, InventorySource (internal/exporters)
//
// ## Activity Log
//
//   - ActivityLogger, AuditReader, Snapshotter (internal/http/stores.go)
//   - Auditor: login events (internal/auth/handlers.go)
//   - BackupAuditor, SystemAuditor, AuditEventCleaner (internal/tasks)
//
// ## Background Work
//
//   - Backupper, BackupStatusRecorder (internal/tasks/backup.go)
//   - InventoryChecker, ReminderSource (internal/tasks)
//   - Enqueuer, BackupSettings (internal/scheduler/backup.go)
//   - TaskQueue, BackupScheduler (internal/http)
//
// ## Document Storage
//
//   - storage.Client: patient document files (internal/storage/client.go)
//
// # Adding a New Record Type
//
//  1. Add the entity to internal/entities and to database.Models.
//
//  2. Create a repository sub-package:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Declare the store interface in internal/http/stores.go and write a
//     controller that takes it.
//
//  4. Register routes in router.go and wire the repository in entrypoint.go.
//
//  5. Add a compile-time check:
//
//     var _ http.LabResultStore = (*labresults.Repository)(nil)
//
// # Adding a New Background Job
//
//  1. Define a task type with a Config() backlite.QueueConfig in internal/tasks.
//
//  2. Add a queue constructor and register it in entrypoint.go.
//
//  3. List it in tasks.Types so the admin API can trigger it, and schedule
//     it in scheduler.MaintenanceJobs if it should run on a cron.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
