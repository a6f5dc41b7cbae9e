package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/storage"
)

// DocumentsController stores uploaded scans and reports for a patient.
// Metadata lives in the database, the bytes in the storage client.
type DocumentsController struct {
	store    DocumentStore
	files    storage.Client
	activity ActivityLogger
	maxBytes int64
}

func NewDocumentsController(store DocumentStore, files storage.Client, activity ActivityLogger, maxBytes int64) *DocumentsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &DocumentsController{store: store, files: files, activity: activity, maxBytes: maxBytes}
}

// Upload accepts a multipart "file" with optional document_type, title and
// description fields.
// POST /api/patients/:id/documents
func (dc *DocumentsController) Upload(c *gin.Context) {
	patientID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if dc.maxBytes > 0 {
		// Multipart overhead on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, dc.maxBytes+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
		return
	}
	if err != nil {
		respondBadRequest(c, "file not provided")
		return
	}
	defer file.Close()

	if dc.maxBytes > 0 && header.Size > dc.maxBytes {
		respondError(c, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
		return
	}

	name := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			contentType = byExt
		}
	}

	storagePath := storage.DocumentPath(patientID, name)
	size, err := dc.files.Upload(c.Request.Context(), storagePath, file)
	if err != nil {
		respondStoreError(c, err, "store document")
		return
	}

	doc := &entities.MedicalDocument{
		PatientID:    patientID,
		DocumentType: c.DefaultPostForm("document_type", "other"),
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
		FilePath:     storagePath,
		FileName:     name,
		ContentType:  contentType,
		FileSize:     size,
		UploadedBy:   userRef(c),
	}
	if err := dc.store.Add(doc); err != nil {
		dc.removeFile(c.Request.Context(), storagePath)
		respondStoreError(c, err, "save document")
		return
	}

	dc.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "document", doc.ID, "uploaded "+doc.Title, gin.H{
		"patient_id": patientID,
		"size":       size,
	})
	respondCreated(c, doc)
}

// ForPatient lists documents, optionally of one ?type=.
// GET /api/patients/:id/documents
func (dc *DocumentsController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := dc.store.ForPatient(id, c.Query("type"))
	if err != nil {
		respondInternalError(c, err, "list documents")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// GET /api/documents/:id
func (dc *DocumentsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := dc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Download streams the stored file.
// GET /api/documents/:id/download
func (dc *DocumentsController) Download(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := dc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get document")
		return
	}

	rc, err := dc.files.Download(c.Request.Context(), doc.FilePath)
	if err != nil {
		respondStoreError(c, err, "open document")
		return
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.Warn().Err(err).Uint("document_id", id).Msg("document download interrupted")
	}
}

// Delete removes the record, then the file.
// DELETE /api/documents/:id
func (dc *DocumentsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := dc.store.Delete(id)
	if err != nil {
		respondStoreError(c, err, "delete document")
		return
	}
	dc.removeFile(c.Request.Context(), doc.FilePath)

	dc.activity.LogDelete(GetUserID(c), "document", id, doc.Title, true)
	respondSuccess(c, "document deleted")
}

func (dc *DocumentsController) removeFile(ctx context.Context, path string) {
	if err := dc.files.Delete(context.WithoutCancel(ctx), path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove document file")
	}
}
