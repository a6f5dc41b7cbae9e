package entities

import "time"

type Prescription struct {
	ID               uint                 `gorm:"primaryKey" json:"id"`
	VisitID          *uint                `gorm:"index" json:"visit_id,omitempty"`
	PatientID        uint                 `gorm:"index" json:"patient_id"`
	PrescriptionDate time.Time            `json:"prescription_date"`
	DoctorID         *uint                `json:"doctor_id,omitempty"`
	Notes            string               `gorm:"type:text" json:"notes,omitempty"`
	Details          []PrescriptionDetail `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE" json:"details"`
	CreatedAt        time.Time            `json:"created_at"`
}

type PrescriptionDetail struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	PrescriptionID uint   `gorm:"index" json:"prescription_id"`
	MedicineName   string `gorm:"size:200" json:"medicine_name"`
	Dosage         string `gorm:"size:100" json:"dosage,omitempty"`
	Frequency      string `gorm:"size:100" json:"frequency,omitempty"`
	Duration       string `gorm:"size:100" json:"duration,omitempty"`
	Instructions   string `gorm:"type:text" json:"instructions,omitempty"`
}
