// Package settings provides database operations for clinic key/value settings.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	setting, err := repo.GetSetting(entities.SettingKeyClinicName)
package settings

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinicmgr/clinic/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSetting retrieves a setting by key.
func (r *Repository) GetSetting(key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Value returns the stored value for key, or fallback when the key is missing.
func (r *Repository) Value(key, fallback string) (string, error) {
	setting, err := r.GetSetting(key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// SetSetting creates or updates a setting.
func (r *Repository) SetSetting(key, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entities.Setting{Key: key, Value: value}).Error
}

// SetMany writes several settings in one transaction.
func (r *Repository) SetMany(values map[string]string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		for key, value := range values {
			if err := repo.SetSetting(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSetting removes a setting by key.
func (r *Repository) DeleteSetting(key string) error {
	return r.db.Where("key = ?", key).Delete(&entities.Setting{}).Error
}

// All returns every setting as a key/value map.
func (r *Repository) All() (map[string]string, error) {
	var rows []entities.Setting
	if err := r.db.Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}
