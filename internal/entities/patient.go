package entities

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Patient is a registered clinic patient. Deactivated patients keep their
// history and stay reachable by ID or code; IsActive only hides them from
// listings and search.
type Patient struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Code             string          `gorm:"uniqueIndex;size:20" json:"code"`
	FirstName        string          `gorm:"index;size:100" json:"first_name"`
	LastName         string          `gorm:"index;size:100" json:"last_name"`
	DateOfBirth      datatypes.Date  `json:"date_of_birth"`
	Gender           Gender          `gorm:"size:10" json:"gender"`
	Phone            string          `gorm:"index;size:30" json:"phone"`
	Phone2           string          `gorm:"size:30" json:"phone2,omitempty"`
	Address          string          `gorm:"size:500" json:"address,omitempty"`
	NationalID       string          `gorm:"index;size:30" json:"national_id,omitempty"`
	BloodType        string          `gorm:"size:5" json:"blood_type,omitempty"`
	Email            string          `gorm:"size:255" json:"email,omitempty"`
	EmergencyContact string          `gorm:"size:200" json:"emergency_contact,omitempty"`
	EmergencyPhone   string          `gorm:"size:30" json:"emergency_phone,omitempty"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	ProfileImagePath string          `gorm:"size:1024" json:"profile_image_path,omitempty"`
	RegistrationDate time.Time       `gorm:"index" json:"registration_date"`
	IsActive         bool            `gorm:"index" json:"is_active"`
	MedicalHistory   *MedicalHistory `gorm:"foreignKey:PatientID" json:"medical_history,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age returns completed years at now.
func (p Patient) Age(now time.Time) int {
	dob := time.Time(p.DateOfBirth)
	if dob.IsZero() {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

type MedicalHistory struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	PatientID          uint      `gorm:"uniqueIndex" json:"patient_id"`
	ChronicDiseases    string    `gorm:"type:text" json:"chronic_diseases"`
	Allergies          string    `gorm:"type:text" json:"allergies"`
	CurrentMedications string    `gorm:"type:text" json:"current_medications"`
	PreviousSurgeries  string    `gorm:"type:text" json:"previous_surgeries"`
	FamilyHistory      string    `gorm:"type:text" json:"family_history"`
	Notes              string    `gorm:"type:text" json:"notes"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type MedicalDocument struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PatientID    uint      `gorm:"index" json:"patient_id"`
	DocumentType string    `gorm:"size:50" json:"document_type"`
	Title        string    `gorm:"size:200" json:"title"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	FilePath     string    `gorm:"size:1024" json:"-"`
	FileName     string    `gorm:"size:255" json:"file_name"`
	ContentType  string    `gorm:"size:100" json:"content_type,omitempty"`
	FileSize     int64     `json:"file_size"`
	UploadDate   time.Time `gorm:"index" json:"upload_date"`
	UploadedBy   *uint     `json:"uploaded_by,omitempty"`
}
