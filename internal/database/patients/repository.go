// Package patients provides database operations for patient records and
// their medical history.
//
// # Usage
//
//	repo := patients.NewRepository(db)
//	err := repo.Add(&entities.Patient{FirstName: "Mona", LastName: "Adel"})
//	found, err := repo.Search("mona")
package patients

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrPatientNotFound        = errors.New("patient not found")
	ErrMedicalHistoryNotFound = errors.New("medical history not found")
	ErrNameRequired           = errors.New("first and last name are required")
	ErrPatientHasInvoices     = errors.New("patient has invoices and cannot be permanently deleted")
)

const codeDayLayout = "20060102"

// updatableColumns are the columns Update writes. Code, registration date and
// the active flag change only through their dedicated operations.
var updatableColumns = []string{
	"first_name", "last_name", "date_of_birth", "gender", "phone", "phone2",
	"address", "national_id", "blood_type", "email", "emergency_contact",
	"emergency_phone", "notes", "profile_image_path",
}

// SearchFilter narrows AdvancedSearch. Zero fields are ignored.
type SearchFilter struct {
	Name            string
	Phone           string
	NationalID      string
	Gender          entities.Gender
	BloodType       string
	RegisteredFrom  *time.Time
	RegisteredTo    *time.Time
	IncludeInactive bool
	Limit           int
}

// PatientDebt is a patient with the sum of remaining amounts on open invoices.
type PatientDebt struct {
	Patient      entities.Patient `json:"patient"`
	TotalDebt    decimal.Decimal  `json:"total_debt"`
	InvoiceCount int              `json:"invoice_count"`
}

// Repository handles all patient database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new patients repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add registers a patient. A code of the form PYYYYMMDDNNNN is generated when
// none is supplied, numbering from 1 each day.
func (r *Repository) Add(p *entities.Patient) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrNameRequired
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if p.RegistrationDate.IsZero() {
			p.RegistrationDate = now
		}
		if p.Code == "" {
			code, err := nextCode(tx, now)
			if err != nil {
				return err
			}
			p.Code = code
		}
		p.IsActive = true

		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		return nil
	})
}

func nextCode(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "P" + now.Format(codeDayLayout)

	var last string
	err := tx.Model(&entities.Patient{}).
		Where("code LIKE ?", prefix+"%").
		Order("LENGTH(code) DESC, code DESC").
		Limit(1).
		Pluck("code", &last).Error
	if err != nil {
		return "", fmt.Errorf("failed to read last patient code: %w", err)
	}

	seq := 1
	if last != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// GetByID returns a patient whether active or not.
func (r *Repository) GetByID(id uint) (*entities.Patient, error) {
	var patient entities.Patient
	err := r.db.Preload("MedicalHistory").First(&patient, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &patient, nil
}

// GetByCode returns a patient whether active or not.
func (r *Repository) GetByCode(code string) (*entities.Patient, error) {
	var patient entities.Patient
	err := r.db.Preload("MedicalHistory").Where("code = ?", code).First(&patient).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &patient, nil
}

// List returns patients, newest registration first.
func (r *Repository) List(activeOnly bool) ([]entities.Patient, error) {
	var patients []entities.Patient
	q := r.db.Order("registration_date DESC, id DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// Search matches active patients by name, code, phone or national ID.
func (r *Repository) Search(term string) ([]entities.Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List(true)
	}
	like := "%" + term + "%"

	var patients []entities.Patient
	err := r.db.
		Where("is_active = ?", true).
		Where(r.db.
			Where("first_name LIKE ?", like).
			Or("last_name LIKE ?", like).
			Or("first_name || ' ' || last_name LIKE ?", like).
			Or("code LIKE ?", like).
			Or("phone LIKE ?", like).
			Or("phone2 LIKE ?", like).
			Or("national_id LIKE ?", like)).
		Order("first_name, last_name").
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (r *Repository) AdvancedSearch(f SearchFilter) ([]entities.Patient, error) {
	q := r.db.Model(&entities.Patient{})
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		like := "%" + name + "%"
		q = q.Where("first_name || ' ' || last_name LIKE ?", like)
	}
	if f.Phone != "" {
		like := "%" + f.Phone + "%"
		q = q.Where("phone LIKE ? OR phone2 LIKE ?", like, like)
	}
	if f.NationalID != "" {
		q = q.Where("national_id = ?", f.NationalID)
	}
	if f.Gender != "" {
		q = q.Where("gender = ?", f.Gender)
	}
	if f.BloodType != "" {
		q = q.Where("blood_type = ?", f.BloodType)
	}
	if f.RegisteredFrom != nil {
		q = q.Where("registration_date >= ?", *f.RegisteredFrom)
	}
	if f.RegisteredTo != nil {
		q = q.Where("registration_date < ?", *f.RegisteredTo)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var patients []entities.Patient
	if err := q.Order("registration_date DESC, id DESC").Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

// Update writes the editable demographic fields of p.
func (r *Repository) Update(p *entities.Patient) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrNameRequired
	}
	result := r.db.Model(&entities.Patient{ID: p.ID}).Select(updatableColumns).Updates(p)
	if result.Error != nil {
		return fmt.Errorf("failed to update patient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// SoftDelete hides a patient from listings and search.
func (r *Repository) SoftDelete(id uint) error {
	return r.setActive(id, false)
}

func (r *Repository) Restore(id uint) error {
	return r.setActive(id, true)
}

// BulkSoftDelete deactivates every listed patient and returns how many rows changed.
func (r *Repository) BulkSoftDelete(ids []uint) (int64, error) {
	return r.bulkSetActive(ids, false)
}

func (r *Repository) BulkRestore(ids []uint) (int64, error) {
	return r.bulkSetActive(ids, true)
}

func (r *Repository) setActive(id uint, active bool) error {
	result := r.db.Model(&entities.Patient{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update patient status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *Repository) bulkSetActive(ids []uint, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&entities.Patient{}).Where("id IN ?", ids).Update("is_active", active)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update patient status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// HardDelete permanently removes a patient together with visits, appointments,
// surgeries, prescriptions, documents and medical history. Patients with any
// invoice are refused. The removed document records are returned so the caller
// can delete their files.
func (r *Repository) HardDelete(id uint) ([]entities.MedicalDocument, error) {
	var documents []entities.MedicalDocument

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var patient entities.Patient
		if err := tx.First(&patient, id).Error; err != nil {
			return mapNotFound(err)
		}

		var invoiceCount int64
		if err := tx.Model(&entities.Invoice{}).Where("patient_id = ?", id).Count(&invoiceCount).Error; err != nil {
			return fmt.Errorf("failed to count invoices: %w", err)
		}
		if invoiceCount > 0 {
			return ErrPatientHasInvoices
		}

		if err := tx.Where("patient_id = ?", id).Find(&documents).Error; err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}

		var prescriptionIDs []uint
		if err := tx.Model(&entities.Prescription{}).Where("patient_id = ?", id).Pluck("id", &prescriptionIDs).Error; err != nil {
			return fmt.Errorf("failed to load prescriptions: %w", err)
		}
		if len(prescriptionIDs) > 0 {
			if err := tx.Where("prescription_id IN ?", prescriptionIDs).Delete(&entities.PrescriptionDetail{}).Error; err != nil {
				return fmt.Errorf("failed to delete prescription details: %w", err)
			}
		}

		for _, model := range []any{
			&entities.Prescription{},
			&entities.Visit{},
			&entities.Appointment{},
			&entities.Surgery{},
			&entities.MedicalDocument{},
			&entities.MedicalHistory{},
		} {
			if err := tx.Where("patient_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete patient records: %w", err)
			}
		}

		if err := tx.Delete(&entities.Patient{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return documents, nil
}

// Recent returns the last n registered active patients.
func (r *Repository) Recent(n int) ([]entities.Patient, error) {
	if n <= 0 {
		n = 10
	}
	var patients []entities.Patient
	err := r.db.Where("is_active = ?", true).
		Order("registration_date DESC, id DESC").
		Limit(n).
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent patients: %w", err)
	}
	return patients, nil
}

func (r *Repository) CodeExists(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&entities.Patient{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of patients, optionally only active ones.
func (r *Repository) Count(activeOnly bool) (int64, error) {
	var count int64
	q := r.db.Model(&entities.Patient{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *Repository) CountNewSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Patient{}).Where("registration_date >= ?", since).Count(&count).Error
	return count, err
}

// GetMedicalHistory returns the single history record of a patient.
func (r *Repository) GetMedicalHistory(patientID uint) (*entities.MedicalHistory, error) {
	var history entities.MedicalHistory
	err := r.db.Where("patient_id = ?", patientID).First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMedicalHistoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// UpsertMedicalHistory creates or replaces the medical history of h.PatientID.
func (r *Repository) UpsertMedicalHistory(h *entities.MedicalHistory) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Patient{}).Where("id = ?", h.PatientID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPatientNotFound
		}

		var existing entities.MedicalHistory
		err := tx.Where("patient_id = ?", h.PatientID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.ID = 0
			return tx.Create(h).Error
		} else if err != nil {
			return err
		}

		h.ID = existing.ID
		h.CreatedAt = existing.CreatedAt
		return tx.Save(h).Error
	})
}

// WithDebts lists patients owing money on non-cancelled invoices, largest debt first.
func (r *Repository) WithDebts() ([]PatientDebt, error) {
	var open []entities.Invoice
	err := r.db.Select("patient_id", "remaining_amount").
		Where("remaining_amount > 0 AND payment_status <> ?", entities.PaymentStatusCancelled).
		Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load open invoices: %w", err)
	}

	byPatient := make(map[uint]*PatientDebt)
	var ids []uint
	for _, inv := range open {
		debt, ok := byPatient[inv.PatientID]
		if !ok {
			debt = &PatientDebt{TotalDebt: decimal.Zero}
			byPatient[inv.PatientID] = debt
			ids = append(ids, inv.PatientID)
		}
		debt.TotalDebt = debt.TotalDebt.Add(inv.RemainingAmount)
		debt.InvoiceCount++
	}
	if len(ids) == 0 {
		return []PatientDebt{}, nil
	}

	var patients []entities.Patient
	if err := r.db.Where("id IN ?", ids).Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to load debtors: %w", err)
	}

	result := make([]PatientDebt, 0, len(patients))
	for _, p := range patients {
		debt := byPatient[p.ID]
		debt.Patient = p
		result = append(result, *debt)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalDebt.GreaterThan(result[j].TotalDebt)
	})
	return result, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPatientNotFound
	}
	return err
}
