// Package settingsstore resolves clinic settings with the priority
// database > environment > default, and exposes them as typed values.
package settingsstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/database/settings"
	"github.com/clinicmgr/clinic/internal/entities"
)

const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var (
	ErrNameRequired      = errors.New("clinic name is required")
	ErrInvalidFee        = errors.New("fees must be non-negative numbers")
	ErrInvalidHours      = errors.New("working hours must be HH:MM with start before end")
	ErrInvalidCurrency   = errors.New("currency must be a 3 letter code")
	ErrInvalidCronFormat = errors.New("invalid cron schedule")
)

type SettingsStore struct {
	repo   *settings.Repository
	backup config.Backup
}

// New returns a store reading overrides from repo and falling back to the
// environment-derived backup configuration.
func New(repo *settings.Repository, backup config.Backup) *SettingsStore {
	return &SettingsStore{repo: repo, backup: backup}
}

// ClinicProfile is the clinic identity printed on receipts and reports.
type ClinicProfile struct {
	Name              string          `json:"clinic_name"`
	Phone             string          `json:"clinic_phone"`
	Email             string          `json:"clinic_email"`
	Address           string          `json:"clinic_address"`
	Currency          string          `json:"currency"`
	ExaminationFee    decimal.Decimal `json:"examination_fee"`
	ReexaminationFee  decimal.Decimal `json:"reexamination_fee"`
	WorkingHoursStart string          `json:"working_hours_start"`
	WorkingHoursEnd   string          `json:"working_hours_end"`
}

// ClinicProfile reads the profile. Missing keys take their seeded defaults.
func (s *SettingsStore) ClinicProfile() (ClinicProfile, error) {
	values, err := s.repo.All()
	if err != nil {
		return ClinicProfile{}, err
	}
	get := func(key string) string {
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		return entities.DefaultSettings[key]
	}

	return ClinicProfile{
		Name:              get(entities.SettingKeyClinicName),
		Phone:             get(entities.SettingKeyClinicPhone),
		Email:             get(entities.SettingKeyClinicEmail),
		Address:           get(entities.SettingKeyClinicAddress),
		Currency:          get(entities.SettingKeyCurrency),
		ExaminationFee:    parseFee(get(entities.SettingKeyExaminationFee)),
		ReexaminationFee:  parseFee(get(entities.SettingKeyReexaminationFee)),
		WorkingHoursStart: get(entities.SettingKeyWorkingHoursStart),
		WorkingHoursEnd:   get(entities.SettingKeyWorkingHoursEnd),
	}, nil
}

// SetClinicProfile validates and saves every profile field in one transaction.
func (s *SettingsStore) SetClinicProfile(p ClinicProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.ExaminationFee.IsNegative() || p.ReexaminationFee.IsNegative() {
		return ErrInvalidFee
	}
	if err := ValidateWorkingHours(p.WorkingHoursStart, p.WorkingHoursEnd); err != nil {
		return err
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(p.Currency) != 3 {
		return ErrInvalidCurrency
	}

	return s.repo.SetMany(map[string]string{
		entities.SettingKeyClinicName:        p.Name,
		entities.SettingKeyClinicPhone:       strings.TrimSpace(p.Phone),
		entities.SettingKeyClinicEmail:       strings.TrimSpace(p.Email),
		entities.SettingKeyClinicAddress:     strings.TrimSpace(p.Address),
		entities.SettingKeyCurrency:          p.Currency,
		entities.SettingKeyExaminationFee:    p.ExaminationFee.StringFixed(2),
		entities.SettingKeyReexaminationFee:  p.ReexaminationFee.StringFixed(2),
		entities.SettingKeyWorkingHoursStart: p.WorkingHoursStart,
		entities.SettingKeyWorkingHoursEnd:   p.WorkingHoursEnd,
	})
}

// FeeFor returns the default examination fee for a visit type.
func (s *SettingsStore) FeeFor(visitType entities.VisitType) decimal.Decimal {
	key := entities.SettingKeyExaminationFee
	if visitType == entities.VisitTypeReexamination {
		key = entities.SettingKeyReexaminationFee
	}
	value, err := s.repo.Value(key, entities.DefaultSettings[key])
	if err != nil {
		return parseFee(entities.DefaultSettings[key])
	}
	return parseFee(value)
}

// ValidateWorkingHours checks two "HH:MM" clock times with start < end.
func ValidateWorkingHours(start, end string) error {
	if !clockPattern.MatchString(start) || !clockPattern.MatchString(end) || start >= end {
		return ErrInvalidHours
	}
	return nil
}

func parseFee(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// stored returns the database value for key, treating a missing row as empty.
func (s *SettingsStore) stored(key string) (string, error) {
	setting, err := s.repo.GetSetting(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, nil
}
