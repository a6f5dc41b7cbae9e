// Package backup copies the clinic database to and from timestamped files.
//
// Copies go through the SQLite online backup API on a connection from the
// live pool, so both backup and restore run while the server is serving
// requests. Restored pages become visible to every pooled connection.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/crypto"
)

const (
	filePrefix   = "Backup_"
	timeLayout   = "20060102_150405"
	plainExt     = ".db"
	encryptedExt = ".db.enc"
)

var namePattern = regexp.MustCompile(`^Backup_(\d{8}_\d{6})(_\d+)?\.db(\.enc)?$`)

var (
	ErrBackupNotFound    = errors.New("backup file not found")
	ErrInvalidName       = errors.New("invalid backup file name")
	ErrEncryptedNoKey    = errors.New("backup is encrypted but no encryption key is configured")
	ErrIntegrityFailed   = errors.New("backup failed integrity check")
	ErrNotClinicDatabase = errors.New("file is not a clinic database")
)

// Info describes one backup file.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Encrypted bool      `json:"encrypted"`
}

type Manager struct {
	db     *sql.DB
	dir    string
	sealer *crypto.Sealer
	retain int
	now    func() time.Time
}

// NewManager returns a Manager writing into dir. A nil sealer writes plain
// copies; retain <= 0 disables pruning.
func NewManager(db *sql.DB, dir string, sealer *crypto.Sealer, retain int) *Manager {
	return &Manager{db: db, dir: dir, sealer: sealer, retain: retain, now: time.Now}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Backup writes a new backup file and prunes old ones.
func (m *Manager) Backup(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	target := m.nextPath()
	plainPath := target
	if m.sealer != nil {
		plainPath = strings.TrimSuffix(target, ".enc") + ".tmp"
		defer os.Remove(plainPath)
	}

	if err := m.copyOut(ctx, plainPath); err != nil {
		os.Remove(plainPath)
		return nil, err
	}

	if m.sealer != nil {
		if err := m.seal(plainPath, target); err != nil {
			return nil, err
		}
	}

	info, err := m.stat(target)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", info.Name).Int64("size", info.Size).Bool("encrypted", info.Encrypted).Msg("database backup created")

	if _, err := m.Prune(); err != nil {
		log.Warn().Err(err).Msg("failed to prune old backups")
	}
	return info, nil
}

// Restore replaces the live database contents with the backup at path.
// The candidate is validated before any page of the live database changes.
func (m *Manager) Restore(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return err
	}

	source := path
	if strings.HasSuffix(path, ".enc") {
		if m.sealer == nil {
			return ErrEncryptedNoKey
		}
		tmp, err := m.open(path)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		source = tmp
	}

	if err := Validate(ctx, source); err != nil {
		return err
	}

	if err := m.copyIn(ctx, source); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("database restored from backup")
	return nil
}

// Resolve maps a bare backup file name to its path in the backup directory.
func (m *Manager) Resolve(name string) (string, error) {
	if filepath.Base(name) != name || !namePattern.MatchString(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrBackupNotFound
		}
		return "", err
	}
	return path, nil
}

// List returns backups in the directory, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !namePattern.MatchString(entry.Name()) {
			continue
		}
		info, err := m.stat(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Latest returns the newest backup, or nil when there is none.
func (m *Manager) Latest() (*Info, error) {
	backups, err := m.List()
	if err != nil || len(backups) == 0 {
		return nil, err
	}
	return &backups[0], nil
}

// Prune deletes all but the newest retain backups and returns the removed names.
func (m *Manager) Prune() ([]string, error) {
	if m.retain <= 0 {
		return nil, nil
	}
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, b := range backups[min(m.retain, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.Name, err)
		}
		removed = append(removed, b.Name)
	}
	if len(removed) > 0 {
		log.Info().Strs("files", removed).Msg("pruned old backups")
	}
	return removed, nil
}

// Validate checks that path is an intact SQLite file holding the clinic schema.
func Validate(ctx context.Context, path string) error {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityFailed, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrIntegrityFailed, result)
	}

	var tables int
	err = db.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('patients', 'invoices', 'visits')")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrityFailed, err)
	}
	if tables != 3 {
		return ErrNotClinicDatabase
	}
	return nil
}

func (m *Manager) nextPath() string {
	stamp := m.now().Format(timeLayout)
	ext := plainExt
	if m.sealer != nil {
		ext = encryptedExt
	}
	path := filepath.Join(m.dir, filePrefix+stamp+ext)
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s_%d%s", filePrefix, stamp, i, ext))
	}
	return path
}

func (m *Manager) stat(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Name:      fi.Name(),
		Path:      path,
		Size:      fi.Size(),
		CreatedAt: fi.ModTime(),
		Encrypted: strings.HasSuffix(fi.Name(), ".enc"),
	}
	if match := namePattern.FindStringSubmatch(fi.Name()); match != nil {
		if t, err := time.ParseInLocation(timeLayout, match[1], time.Local); err == nil {
			info.CreatedAt = t
		}
	}
	return info, nil
}

// copyOut copies the live database into a new file at path.
func (m *Manager) copyOut(ctx context.Context, path string) error {
	dest, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer dest.Close()

	return pageCopy(ctx, dest, m.db)
}

// copyIn overwrites the live database with the file at path.
func (m *Manager) copyIn(ctx context.Context, path string) error {
	src, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer src.Close()

	return pageCopy(ctx, m.db, src)
}

// pageCopy runs a complete online backup from src's main database into dst's.
func pageCopy(ctx context.Context, dst, src *sql.DB) error {
	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer dstConn.Close()

	srcConn, err := src.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			d, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected driver connection %T", dstDriver)
			}
			s, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected driver connection %T", srcDriver)
			}

			bk, err := d.Backup("main", s, "main")
			if err != nil {
				return fmt.Errorf("failed to start backup: %w", err)
			}
			done, err := bk.Step(-1)
			if err != nil {
				bk.Finish()
				return fmt.Errorf("backup step failed: %w", err)
			}
			if !done {
				bk.Finish()
				return errors.New("backup did not complete")
			}
			return bk.Finish()
		})
	})
}

func (m *Manager) seal(plainPath, target string) error {
	data, err := os.ReadFile(plainPath)
	if err != nil {
		return err
	}
	sealed, err := m.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt backup: %w", err)
	}
	if err := os.WriteFile(target, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// open decrypts an encrypted backup into a temporary file and returns its path.
func (m *Manager) open(path string) (string, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	plain, err := m.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt backup: %w", err)
	}
	tmp, err := os.CreateTemp("", "clinic-restore-*.db")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.Write(plain); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
