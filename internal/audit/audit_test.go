package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiver_Snapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	archiver := NewArchiver(dir)

	record := map[string]any{"id": 7, "first_name": "Salma", "code": "P202603140001"}

	filename, err := archiver.Snapshot("patient", 3, record)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "patient_"))
	assert.True(t, strings.HasSuffix(filename, ".json"))

	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)

	var saved struct {
		Kind       string         `json:"kind"`
		ArchivedBy uint           `json:"archived_by"`
		Record     map[string]any `json:"record"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "patient", saved.Kind)
	assert.Equal(t, uint(3), saved.ArchivedBy)
	assert.Equal(t, "Salma", saved.Record["first_name"])

	t.Run("unique file per snapshot", func(t *testing.T) {
		other, err := archiver.Snapshot("patient", 3, record)
		require.NoError(t, err)
		assert.NotEqual(t, filename, other)
	})

	t.Run("unmarshalable record", func(t *testing.T) {
		_, err := archiver.Snapshot("bad", 1, make(chan int))
		assert.Error(t, err)
	})
}
