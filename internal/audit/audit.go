package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Archiver writes JSON snapshots of records that are about to be removed
// permanently, so a hard delete still leaves a readable trace on disk.
type Archiver struct {
	Dir string
}

func NewArchiver(dir string) *Archiver {
	return &Archiver{Dir: dir}
}

type snapshot struct {
	Kind       string    `json:"kind"`
	ArchivedAt time.Time `json:"archived_at"`
	ArchivedBy uint      `json:"archived_by"`
	Record     any       `json:"record"`
}

// Snapshot saves record under <kind>_<uuid>.json and returns the file name.
func (a *Archiver) Snapshot(kind string, userID uint, record any) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot{
		Kind:       kind,
		ArchivedAt: time.Now().UTC(),
		ArchivedBy: userID,
		Record:     record,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.json", kind, uuid.NewString())
	path := filepath.Join(a.Dir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	log.Info().Str("file", path).Str("kind", kind).Msg("record snapshot saved")
	return filename, nil
}
