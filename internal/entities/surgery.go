package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type SurgeryStatus string

const (
	SurgeryStatusScheduled SurgeryStatus = "scheduled"
	SurgeryStatusCompleted SurgeryStatus = "completed"
	SurgeryStatusCancelled SurgeryStatus = "cancelled"
	SurgeryStatusPostponed SurgeryStatus = "postponed"
)

func (s SurgeryStatus) Valid() bool {
	switch s {
	case SurgeryStatusScheduled, SurgeryStatusCompleted, SurgeryStatusCancelled, SurgeryStatusPostponed:
		return true
	}
	return false
}

type Surgery struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PatientID        uint            `gorm:"index" json:"patient_id"`
	Patient          *Patient        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Name             string          `gorm:"size:200" json:"surgery_name"`
	Type             string          `gorm:"size:100" json:"surgery_type,omitempty"`
	ScheduledDate    *time.Time      `gorm:"index" json:"scheduled_date,omitempty"`
	SurgeryDate      *time.Time      `json:"surgery_date,omitempty"`
	DoctorID         *uint           `gorm:"index" json:"doctor_id,omitempty"`
	AssistantDoctors string          `gorm:"size:500" json:"assistant_doctors,omitempty"`
	Anesthesia       string          `gorm:"size:100" json:"anesthesia,omitempty"`
	DurationMinutes  *int            `json:"duration_minutes,omitempty"`
	Cost             decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost"`
	Status           SurgeryStatus   `gorm:"index;size:20" json:"status"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
