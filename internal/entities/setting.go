package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Clinic profile
	SettingKeyClinicName        = "clinic_name"
	SettingKeyClinicPhone       = "clinic_phone"
	SettingKeyClinicEmail       = "clinic_email"
	SettingKeyClinicAddress     = "clinic_address"
	SettingKeyExaminationFee    = "examination_fee"
	SettingKeyReexaminationFee  = "reexamination_fee"
	SettingKeyCurrency          = "currency"
	SettingKeyWorkingHoursStart = "working_hours_start"
	SettingKeyWorkingHoursEnd   = "working_hours_end"

	// Backups
	SettingKeyBackupEnabled     = "backup_enabled"
	SettingKeyBackupSchedule    = "backup_schedule"
	SettingKeyBackupLastAt      = "backup_last_at"
	SettingKeyBackupLastStatus  = "backup_last_status"
	SettingKeyBackupLastMessage = "backup_last_message"
	SettingKeyBackupLastFile    = "backup_last_file"
)

// DefaultSettings are written on first start when the key is missing.
var DefaultSettings = map[string]string{
	SettingKeyClinicName:        "Clinic",
	SettingKeyClinicPhone:       "",
	SettingKeyClinicEmail:       "",
	SettingKeyClinicAddress:     "",
	SettingKeyExaminationFee:    "200",
	SettingKeyReexaminationFee:  "100",
	SettingKeyCurrency:          "EGP",
	SettingKeyWorkingHoursStart: "09:00",
	SettingKeyWorkingHoursEnd:   "18:00",
}
