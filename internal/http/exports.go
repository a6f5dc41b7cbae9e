package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/exporters"
)

// ExportService writes CSV and markdown exports.
type ExportService interface {
	FileName(kind exporters.Kind) string
	Export(ctx context.Context, kind exporters.Kind, rng exporters.Range) (exporters.ExportResult, error)
	Stream(ctx context.Context, w io.Writer, kind exporters.Kind, rng exporters.Range) (int, error)
}

type ExportsController struct {
	exporter ExportService
	activity ActivityLogger
	now      func() time.Time
}

func NewExportsController(exporter ExportService, activity ActivityLogger) *ExportsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &ExportsController{exporter: exporter, activity: activity, now: time.Now}
}

// Kinds lists the available exports.
// GET /api/exports
func (ec *ExportsController) Kinds(c *gin.Context) {
	type kindInfo struct {
		Kind        exporters.Kind `json:"kind"`
		Extension   string         `json:"extension"`
		ContentType string         `json:"content_type"`
	}
	list := make([]kindInfo, 0, len(exporters.Kinds))
	for _, k := range exporters.Kinds {
		list = append(list, kindInfo{Kind: k, Extension: k.Ext(), ContentType: k.ContentType()})
	}
	c.JSON(http.StatusOK, list)
}

func (ec *ExportsController) parse(c *gin.Context) (exporters.Kind, exporters.Range, bool) {
	kind, err := exporters.ParseKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return "", exporters.Range{}, false
	}
	from, to, ok := parseRangeQuery(c, ec.now())
	if !ok {
		return "", exporters.Range{}, false
	}
	return kind, exporters.Range{From: from, To: to}, true
}

// Download renders an export in memory and sends it as an attachment
// without keeping a copy on disk.
// GET /api/exports/:kind?from=&to=
func (ec *ExportsController) Download(c *gin.Context) {
	kind, rng, ok := ec.parse(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	rows, err := ec.exporter.Stream(c.Request.Context(), &buf, kind, rng)
	if err != nil {
		ec.activity.LogExport(GetUserID(c), string(kind), "", 0, err)
		respondStoreError(c, err, "export "+string(kind))
		return
	}

	name := ec.exporter.FileName(kind)
	ec.activity.LogExport(GetUserID(c), string(kind), name, rows, nil)

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, kind.ContentType(), buf.Bytes())
}

// Save writes an export into the export directory and returns its path.
// POST /api/exports/:kind?from=&to=
func (ec *ExportsController) Save(c *gin.Context) {
	kind, rng, ok := ec.parse(c)
	if !ok {
		return
	}

	result, err := ec.exporter.Export(c.Request.Context(), kind, rng)
	ec.activity.LogExport(GetUserID(c), string(kind), filepath.Base(result.Path), result.Rows, err)
	if err != nil {
		respondStoreError(c, err, "export "+string(kind))
		return
	}

	respondCreated(c, gin.H{
		"kind":  kind,
		"path":  result.Path,
		"file":  filepath.Base(result.Path),
		"rows":  result.Rows,
		"range": gin.H{"from": rng.From, "to": rng.To},
	})
}
