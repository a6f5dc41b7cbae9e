package backup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicmgr/clinic/internal/crypto"
	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/entities"
)

type fixture struct {
	db      *database.Database
	manager *Manager
	dir     string
}

func setup(t *testing.T, sealer *crypto.Sealer, retain int) *fixture {
	t.Helper()
	root := t.TempDir()
	db, err := database.NewDatabase(filepath.Join(root, "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.SQL()
	require.NoError(t, err)

	dir := filepath.Join(root, "backups")
	return &fixture{db: db, manager: NewManager(sqlDB, dir, sealer, retain), dir: dir}
}

func (f *fixture) addPatient(t *testing.T, code string) {
	t.Helper()
	require.NoError(t, f.db.DB.Create(&entities.Patient{Code: code, FirstName: "Test", IsActive: true}).Error)
}

func (f *fixture) patientCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.DB.Model(&entities.Patient{}).Count(&n).Error)
	return n
}

func clock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestManager_BackupAndRestore(t *testing.T) {
	f := setup(t, nil, 0)
	ctx := context.Background()

	f.addPatient(t, "P1")
	info, err := f.manager.Backup(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^Backup_\d{8}_\d{6}\.db$`, info.Name)
	assert.False(t, info.Encrypted)
	assert.Positive(t, info.Size)

	f.addPatient(t, "P2")
	assert.Equal(t, int64(2), f.patientCount(t))

	require.NoError(t, f.manager.Restore(ctx, info.Path))
	assert.Equal(t, int64(1), f.patientCount(t), "restore rolls the live database back")
}

func TestManager_Encrypted(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sealer, err := crypto.NewSealerFromBase64(key)
	require.NoError(t, err)

	f := setup(t, sealer, 0)
	ctx := context.Background()
	f.addPatient(t, "P1")

	info, err := f.manager.Backup(ctx)
	require.NoError(t, err)
	assert.True(t, info.Encrypted)
	assert.Regexp(t, `\.db\.enc$`, info.Name)

	raw, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw[:32]), "SQLite format 3")

	leftovers, err := filepath.Glob(filepath.Join(f.dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	f.addPatient(t, "P2")
	require.NoError(t, f.manager.Restore(ctx, info.Path))
	assert.Equal(t, int64(1), f.patientCount(t))

	t.Run("no key configured", func(t *testing.T) {
		plain := NewManager(f.manager.db, f.dir, nil, 0)
		assert.ErrorIs(t, plain.Restore(ctx, info.Path), ErrEncryptedNoKey)
	})
}

func TestManager_ListAndPrune(t *testing.T) {
	f := setup(t, nil, 2)
	f.manager.now = clock(time.Date(2026, 3, 14, 2, 0, 0, 0, time.Local))
	ctx := context.Background()

	var names []string
	for i := 0; i < 4; i++ {
		info, err := f.manager.Backup(ctx)
		require.NoError(t, err)
		names = append(names, info.Name)
	}

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, names[3], backups[0].Name)
	assert.Equal(t, names[2], backups[1].Name)

	latest, err := f.manager.Latest()
	require.NoError(t, err)
	assert.Equal(t, names[3], latest.Name)
}

func TestManager_SameSecondNames(t *testing.T) {
	f := setup(t, nil, 0)
	fixed := time.Date(2026, 3, 14, 2, 0, 0, 0, time.Local)
	f.manager.now = func() time.Time { return fixed }

	first, err := f.manager.Backup(context.Background())
	require.NoError(t, err)
	second, err := f.manager.Backup(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
	assert.Equal(t, "Backup_20260314_020000_1.db", second.Name)
}

func TestManager_RestoreRejectsBadFiles(t *testing.T) {
	f := setup(t, nil, 0)
	ctx := context.Background()
	f.addPatient(t, "P1")

	t.Run("missing file", func(t *testing.T) {
		assert.ErrorIs(t, f.manager.Restore(ctx, filepath.Join(t.TempDir(), "nope.db")), ErrBackupNotFound)
	})

	t.Run("not sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.db")
		require.NoError(t, os.WriteFile(path, []byte("definitely not a database file, just text"), 0o600))
		assert.ErrorIs(t, f.manager.Restore(ctx, path), ErrIntegrityFailed)
	})

	t.Run("foreign schema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.db")
		other, err := sql.Open("sqlite3", path)
		require.NoError(t, err)
		_, err = other.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
		require.NoError(t, err)
		require.NoError(t, other.Close())

		assert.ErrorIs(t, f.manager.Restore(ctx, path), ErrNotClinicDatabase)
	})

	assert.Equal(t, int64(1), f.patientCount(t), "live data untouched after rejected restores")
}

func TestManager_Resolve(t *testing.T) {
	f := setup(t, nil, 0)
	info, err := f.manager.Backup(context.Background())
	require.NoError(t, err)

	path, err := f.manager.Resolve(info.Name)
	require.NoError(t, err)
	assert.Equal(t, info.Path, path)

	_, err = f.manager.Resolve("../clinic.db")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = f.manager.Resolve("Backup_20000101_000000.db")
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestManager_ListMissingDir(t *testing.T) {
	f := setup(t, nil, 0)
	backups, err := f.manager.List()
	require.NoError(t, err)
	assert.Empty(t, backups)
}
