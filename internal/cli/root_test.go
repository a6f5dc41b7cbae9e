package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "clinic 1.2.3 (abc)")
}

func TestRestoreRequiresConfirmation(t *testing.T) {
	_, err := run(t, "restore", "Backup_20260101_020000.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestExportRejectsUnknownKind(t *testing.T) {
	_, err := run(t, "export", "secrets")
	assert.Error(t, err)
}

func TestCreateAdminRequiresCredentials(t *testing.T) {
	_, err := run(t, "create-admin", "--username", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}

func TestKeygen(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestBackupAndList(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", dir+"/clinic.db")
	t.Setenv("BACKUP_DIR", dir+"/backups")
	t.Setenv("AUDIT_DIR", dir+"/audit")
	t.Setenv("BACKUP_ENCRYPTION_KEY", "")

	out, err := run(t, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to")

	out, err = run(t, "backups")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup_")
}
