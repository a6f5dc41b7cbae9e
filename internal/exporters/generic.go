// Package exporters turns clinic records into CSV and Markdown files.
package exporters

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/utils"
)

// Kind names an export and prefixes its file name.
type Kind string

const (
	KindPatients      Kind = "patients"
	KindVisits        Kind = "visits"
	KindInvoices      Kind = "invoices"
	KindInventory     Kind = "inventory"
	KindDebts         Kind = "debts"
	KindMonthlyReport Kind = "monthly_report"
	KindReceipt       Kind = "receipt"
)

// Kinds lists the exports selectable by name from the CLI and HTTP API.
var Kinds = []Kind{KindPatients, KindVisits, KindInvoices, KindInventory, KindDebts, KindMonthlyReport}

var ErrUnknownKind = errors.New("unknown export kind")

// ParseKind validates a user-supplied export name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Ext is the file extension written for the kind.
func (k Kind) Ext() string {
	switch k {
	case KindMonthlyReport, KindReceipt:
		return "md"
	default:
		return "csv"
	}
}

// ContentType is the MIME type used when the export is streamed over HTTP.
func (k Kind) ContentType() string {
	if k.Ext() == "md" {
		return "text/markdown; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// Exporter writes export files into Dir.
type Exporter struct {
	Dir string
	now func() time.Time
}

func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir, now: time.Now}
}

// FileName is the name a new export of kind would get now.
func (e *Exporter) FileName(kind Kind) string {
	return utils.ExportFilename(string(kind), e.now(), kind.Ext())
}

// writeFile creates the export file and hands it to write. A failed write
// removes the partial file.
func (e *Exporter) writeFile(name string, write func(io.Writer) (int, error)) (ExportResult, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to create export file: %w", err)
	}

	rows, err := write(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return ExportResult{}, err
	}

	log.Info().Str("path", path).Int("rows", rows).Msg("export written")
	return ExportResult{Path: path, Rows: rows}, nil
}
