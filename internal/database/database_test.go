package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicmgr/clinic/internal/entities"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase_SeedsDefaultSettings(t *testing.T) {
	db := setupTestDB(t)

	var setting entities.Setting
	require.NoError(t, db.DB.Where("key = ?", entities.SettingKeyExaminationFee).First(&setting).Error)
	assert.Equal(t, "200", setting.Value)

	var count int64
	require.NoError(t, db.DB.Model(&entities.Setting{}).Count(&count).Error)
	assert.Equal(t, int64(len(entities.DefaultSettings)), count)
}

func TestNewDatabase_ReopenKeepsCustomSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.DB.Model(&entities.Setting{}).
		Where("key = ?", entities.SettingKeyClinicName).
		Update("value", "Al Shifa").Error)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	var setting entities.Setting
	require.NoError(t, db.DB.Where("key = ?", entities.SettingKeyClinicName).First(&setting).Error)
	assert.Equal(t, "Al Shifa", setting.Value)
}

func TestDatabase_PingAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clinic.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Ping(context.Background()))
	assert.FileExists(t, path)
}
