// Package prescriptions provides database operations for prescriptions
// and their medicine lines.
package prescriptions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrVisitMismatch        = errors.New("visit does not belong to patient")
	ErrNoDetails            = errors.New("prescription must contain at least one medicine")
	ErrMedicineRequired     = errors.New("medicine name is required")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores the prescription header and its details in one transaction.
func (r *Repository) Create(p *entities.Prescription) error {
	if len(p.Details) == 0 {
		return ErrNoDetails
	}
	for i := range p.Details {
		p.Details[i].MedicineName = strings.TrimSpace(p.Details[i].MedicineName)
		if p.Details[i].MedicineName == "" {
			return ErrMedicineRequired
		}
	}
	if p.PrescriptionDate.IsZero() {
		p.PrescriptionDate = time.Now()
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Patient{}).Where("id = ?", p.PatientID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPatientNotFound
		}

		if p.VisitID != nil {
			var visit entities.Visit
			if err := tx.Select("id", "patient_id").First(&visit, *p.VisitID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrVisitMismatch
				}
				return err
			}
			if visit.PatientID != p.PatientID {
				return ErrVisitMismatch
			}
		}

		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetByID(id uint) (*entities.Prescription, error) {
	var p entities.Prescription
	err := r.db.Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ForPatient(patientID uint) ([]entities.Prescription, error) {
	return r.find("patient_id = ?", patientID)
}

func (r *Repository) ForVisit(visitID uint) ([]entities.Prescription, error) {
	return r.find("visit_id = ?", visitID)
}

func (r *Repository) find(query string, args ...any) ([]entities.Prescription, error) {
	var list []entities.Prescription
	err := r.db.Preload("Details").
		Where(query, args...).
		Order("prescription_date DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes the prescription; details go with it via the cascade.
func (r *Repository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prescription_id = ?", id).Delete(&entities.PrescriptionDetail{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entities.Prescription{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPrescriptionNotFound
		}
		return nil
	})
}
