// Package documents stores metadata for files attached to patient records.
// File contents live on disk under the configured documents directory.
package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/entities"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrTitleRequired    = errors.New("document title is required")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Add(doc *entities.MedicalDocument) error {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		doc.Title = doc.FileName
	}
	if doc.Title == "" {
		return ErrTitleRequired
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now()
	}

	var count int64
	if err := r.db.Model(&entities.Patient{}).Where("id = ?", doc.PatientID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPatientNotFound
	}

	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(id uint) (*entities.MedicalDocument, error) {
	var doc entities.MedicalDocument
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ForPatient lists documents newest first, optionally narrowed to one type.
func (r *Repository) ForPatient(patientID uint, docType string) ([]entities.MedicalDocument, error) {
	var docs []entities.MedicalDocument
	q := r.db.Where("patient_id = ?", patientID)
	if docType != "" {
		q = q.Where("document_type = ?", docType)
	}
	if err := q.Order("upload_date DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete removes the row and returns it so the caller can remove the file.
func (r *Repository) Delete(id uint) (*entities.MedicalDocument, error) {
	var doc entities.MedicalDocument
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&doc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		return tx.Delete(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
