package http

import (
	"errors"
	"net/http"

	"github.com/clinicmgr/clinic/internal/backup"
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
	"github.com/clinicmgr/clinic/internal/ledger"
	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/storage"
)

var notFoundErrors = []error{
	patients.ErrPatientNotFound,
	patients.ErrMedicalHistoryNotFound,
	visits.ErrVisitNotFound,
	visits.ErrPatientNotFound,
	invoices.ErrInvoiceNotFound,
	invoices.ErrPaymentNotFound,
	invoices.ErrPatientNotFound,
	inventory.ErrItemNotFound,
	appointments.ErrAppointmentNotFound,
	appointments.ErrPatientNotFound,
	surgeries.ErrSurgeryNotFound,
	surgeries.ErrPatientNotFound,
	prescriptions.ErrPrescriptionNotFound,
	prescriptions.ErrPatientNotFound,
	documents.ErrDocumentNotFound,
	documents.ErrPatientNotFound,
	users.ErrUserNotFound,
	backup.ErrBackupNotFound,
	storage.ErrNotFound,
}

var conflictErrors = []error{
	patients.ErrPatientHasInvoices,
	visits.ErrInvalidTransition,
	visits.ErrQueueEmpty,
	visits.ErrPatientInactive,
	invoices.ErrInvoiceCancelled,
	invoices.ErrInvoiceHasPayment,
	invoices.ErrDiscountBelowPaid,
	inventory.ErrCodeExists,
	inventory.ErrInsufficientStock,
	inventory.ErrTransactionOnInactive,
	appointments.ErrSlotTaken,
	users.ErrUsernameTaken,
	ledger.ErrOverpayment,
}

var badRequestErrors = []error{
	patients.ErrNameRequired,
	invoices.ErrInvalidMethod,
	invoices.ErrNegativeTotal,
	inventory.ErrCodeRequired,
	inventory.ErrInvalidQuantity,
	inventory.ErrInvalidTransaction,
	inventory.ErrNegativeAdjustment,
	appointments.ErrInvalidDay,
	appointments.ErrInvalidStatus,
	appointments.ErrInvalidSlotRange,
	surgeries.ErrNameRequired,
	surgeries.ErrInvalidStatus,
	surgeries.ErrNegativeCost,
	prescriptions.ErrVisitMismatch,
	prescriptions.ErrNoDetails,
	prescriptions.ErrMedicineRequired,
	documents.ErrTitleRequired,
	users.ErrUsernameRequired,
	users.ErrInvalidRole,
	ledger.ErrNonPositivePayment,
	ledger.ErrInvalidDiscount,
	ledger.ErrInvalidPercentage,
	ledger.ErrInvalidQuantity,
	ledger.ErrNegativePrice,
	settingsstore.ErrNameRequired,
	settingsstore.ErrInvalidFee,
	settingsstore.ErrInvalidHours,
	settingsstore.ErrInvalidCurrency,
	settingsstore.ErrInvalidCronFormat,
	backup.ErrInvalidName,
	backup.ErrEncryptedNoKey,
	backup.ErrIntegrityFailed,
	backup.ErrNotClinicDatabase,
	exporters.ErrUnknownKind,
	storage.ErrInvalidPath,
}

// errorStatus maps sentinel errors from the stores to an HTTP status and a
// short machine-readable code.
func errorStatus(err error) (int, string) {
	switch {
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound, "not_found"
	case matchesAny(err, conflictErrors):
		return http.StatusConflict, "conflict"
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case matchesAny(err, badRequestErrors):
		return http.StatusBadRequest, "invalid"
	}
	return http.StatusInternalServerError, ""
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
