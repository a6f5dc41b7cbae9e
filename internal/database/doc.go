// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, settings seeding
//	├── patients/        # Patient records, medical history, codes, debts
//	├── visits/          # Daily queue, call-next, visit lifecycle
//	├── invoices/        # Invoices, items, payments and their ledger
//	├── inventory/       # Stock items and quantity transactions
//	├── appointments/    # Bookings, slot availability, reminders
//	├── surgeries/       # Scheduled operations
//	├── prescriptions/   # Prescriptions and their medicine lines
//	├── documents/       # Metadata of uploaded patient files
//	├── users/           # Staff accounts, tokens, lockout
//	├── settings/        # Key/value clinic settings
//	└── audit/           # Activity log
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./clinic.db")
//
//	patientsRepo := patients.NewRepository(db.DB)
//	invoicesRepo := invoices.NewRepository(db.DB)
//
//	p := &entities.Patient{FirstName: "Mona", LastName: "Hassan"}
//	err = patientsRepo.Add(p) // assigns p.Code
//
// Multi-statement writes (queue numbering, payments, stock changes) run in a
// single transaction. The connection opens transactions with BEGIN IMMEDIATE,
// so two writers never interleave a read-then-write sequence.
//
// # Interface Implementations
//
// Repositories satisfy the narrow store interfaces declared by their
// consumers, for example patients.Repository implements http.PatientStore and
// exporters.PatientSource. internal/interfaces/checks.go lists every pairing.
//
// # Adding a New Domain
//
//  1. Add the entity to internal/entities and to Models
//  2. Create a new sub-package with a Repository struct holding a *gorm.DB
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
