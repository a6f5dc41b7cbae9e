package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/storage"
)

type PatientsController struct {
	store    PatientStore
	files    storage.Client
	archiver Snapshotter
	activity ActivityLogger
}

func NewPatientsController(store PatientStore, files storage.Client, archiver Snapshotter, activity ActivityLogger) *PatientsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &PatientsController{store: store, files: files, archiver: archiver, activity: activity}
}

// PatientRequest is the editable part of a patient record.
type PatientRequest struct {
	FirstName        string          `json:"first_name" binding:"required"`
	LastName         string          `json:"last_name" binding:"required"`
	DateOfBirth      string          `json:"date_of_birth"`
	Gender           entities.Gender `json:"gender"`
	Phone            string          `json:"phone"`
	Phone2           string          `json:"phone2"`
	Address          string          `json:"address"`
	NationalID       string          `json:"national_id"`
	BloodType        string          `json:"blood_type"`
	Email            string          `json:"email"`
	EmergencyContact string          `json:"emergency_contact"`
	EmergencyPhone   string          `json:"emergency_phone"`
	Notes            string          `json:"notes"`
}

func (r PatientRequest) apply(p *entities.Patient) error {
	p.FirstName = strings.TrimSpace(r.FirstName)
	p.LastName = strings.TrimSpace(r.LastName)
	p.Gender = r.Gender
	p.Phone = strings.TrimSpace(r.Phone)
	p.Phone2 = strings.TrimSpace(r.Phone2)
	p.Address = r.Address
	p.NationalID = strings.TrimSpace(r.NationalID)
	p.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
	p.Email = strings.TrimSpace(r.Email)
	p.EmergencyContact = r.EmergencyContact
	p.EmergencyPhone = r.EmergencyPhone
	p.Notes = r.Notes

	p.DateOfBirth = datatypes.Date{}
	if r.DateOfBirth != "" {
		dob, err := time.Parse(entities.DayLayout, r.DateOfBirth)
		if err != nil {
			return err
		}
		p.DateOfBirth = datatypes.Date(dob)
	}
	return nil
}

// List returns patients, active only unless ?all=true.
// GET /api/patients
func (pc *PatientsController) List(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	list, err := pc.store.List(activeOnly)
	if err != nil {
		respondInternalError(c, err, "list patients")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Search matches name, phone, code or national ID.
// GET /api/patients/search?q=
func (pc *PatientsController) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondBadRequest(c, "q is required")
		return
	}
	list, err := pc.store.Search(q)
	if err != nil {
		respondInternalError(c, err, "search patients")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

type advancedSearchRequest struct {
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	NationalID      string          `json:"national_id"`
	Gender          entities.Gender `json:"gender"`
	BloodType       string          `json:"blood_type"`
	RegisteredFrom  string          `json:"registered_from"`
	RegisteredTo    string          `json:"registered_to"`
	IncludeInactive bool            `json:"include_inactive"`
	Limit           int             `json:"limit"`
}

// AdvancedSearch combines several filters.
// POST /api/patients/search
func (pc *PatientsController) AdvancedSearch(c *gin.Context) {
	var req advancedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid search filter")
		return
	}

	filter := patients.SearchFilter{
		Name:            req.Name,
		Phone:           req.Phone,
		NationalID:      req.NationalID,
		Gender:          req.Gender,
		BloodType:       req.BloodType,
		IncludeInactive: req.IncludeInactive,
		Limit:           req.Limit,
	}
	for _, bound := range []struct {
		value string
		dst   **time.Time
	}{{req.RegisteredFrom, &filter.RegisteredFrom}, {req.RegisteredTo, &filter.RegisteredTo}} {
		if bound.value == "" {
			continue
		}
		t, err := time.Parse(entities.DayLayout, bound.value)
		if err != nil {
			respondBadRequest(c, "registration dates must be YYYY-MM-DD")
			return
		}
		*bound.dst = &t
	}

	list, err := pc.store.AdvancedSearch(filter)
	if err != nil {
		respondInternalError(c, err, "advanced patient search")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Recent returns the latest registrations.
// GET /api/patients/recent?n=10
func (pc *PatientsController) Recent(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("n", "10"))
	list, err := pc.store.Recent(n)
	if err != nil {
		respondInternalError(c, err, "recent patients")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// WithDebts lists patients with unpaid balances.
// GET /api/patients/debts
func (pc *PatientsController) WithDebts(c *gin.Context) {
	list, err := pc.store.WithDebts()
	if err != nil {
		respondInternalError(c, err, "patients with debts")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Create registers a patient.
// POST /api/patients
func (pc *PatientsController) Create(c *gin.Context) {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "first_name and last_name are required")
		return
	}

	var p entities.Patient
	if err := req.apply(&p); err != nil {
		respondBadRequest(c, "date_of_birth must be YYYY-MM-DD")
		return
	}
	if err := pc.store.Add(&p); err != nil {
		respondStoreError(c, err, "create patient")
		return
	}

	pc.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "patient", p.ID, "registered "+p.FullName(), gin.H{"code": p.Code})
	respondCreated(c, p)
}

// Get returns one patient, including deactivated ones.
// GET /api/patients/:id
func (pc *PatientsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := pc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get patient")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetByCode looks a patient up by card code.
// GET /api/patients/code/:code
func (pc *PatientsController) GetByCode(c *gin.Context) {
	p, err := pc.store.GetByCode(c.Param("code"))
	if err != nil {
		respondStoreError(c, err, "get patient by code")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update replaces the demographic fields.
// PUT /api/patients/:id
func (pc *PatientsController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "first_name and last_name are required")
		return
	}

	p, err := pc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "load patient")
		return
	}
	if err := req.apply(p); err != nil {
		respondBadRequest(c, "date_of_birth must be YYYY-MM-DD")
		return
	}
	if err := pc.store.Update(p); err != nil {
		respondStoreError(c, err, "update patient")
		return
	}

	pc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "patient", id, "updated "+p.FullName(), nil)
	c.JSON(http.StatusOK, p)
}

// Deactivate soft-deletes a patient.
// DELETE /api/patients/:id
func (pc *PatientsController) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := pc.store.SoftDelete(id); err != nil {
		respondStoreError(c, err, "deactivate patient")
		return
	}
	pc.activity.LogDelete(GetUserID(c), "patient", id, "", false)
	respondSuccess(c, "patient deactivated")
}

// Restore reactivates a soft-deleted patient.
// POST /api/patients/:id/restore
func (pc *PatientsController) Restore(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := pc.store.Restore(id); err != nil {
		respondStoreError(c, err, "restore patient")
		return
	}
	pc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "patient", id, "restored patient", nil)
	respondSuccess(c, "patient restored")
}

type bulkRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// BulkDeactivate soft-deletes several patients.
// POST /api/patients/bulk/deactivate
func (pc *PatientsController) BulkDeactivate(c *gin.Context) {
	pc.bulk(c, pc.store.BulkSoftDelete, "deactivated")
}

// BulkRestore reactivates several patients.
// POST /api/patients/bulk/restore
func (pc *PatientsController) BulkRestore(c *gin.Context) {
	pc.bulk(c, pc.store.BulkRestore, "restored")
}

func (pc *PatientsController) bulk(c *gin.Context, apply func([]uint) (int64, error), verb string) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "ids are required")
		return
	}
	n, err := apply(req.IDs)
	if err != nil {
		respondInternalError(c, err, "bulk patient update")
		return
	}
	pc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "patient", 0, "bulk "+verb, gin.H{"ids": req.IDs, "affected": n})
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

// HardDelete removes a patient and every clinical record permanently. A JSON
// snapshot is archived first; document files are removed afterwards.
// DELETE /api/patients/:id/permanent
func (pc *PatientsController) HardDelete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p, err := pc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "load patient")
		return
	}
	if history, err := pc.store.GetMedicalHistory(id); err == nil {
		p.MedicalHistory = history
	}

	snapshot := ""
	if pc.archiver != nil {
		if snapshot, err = pc.archiver.Snapshot("patient", GetUserID(c), p); err != nil {
			respondInternalError(c, err, "snapshot patient")
			return
		}
	}

	docs, err := pc.store.HardDelete(id)
	if err != nil {
		respondStoreError(c, err, "hard delete patient")
		return
	}

	if pc.files != nil && len(docs) > 0 {
		paths := make([]string, 0, len(docs))
		for _, d := range docs {
			paths = append(paths, d.FilePath)
		}
		if err := storage.DeleteAll(context.WithoutCancel(c.Request.Context()), pc.files, paths); err != nil {
			log.Warn().Err(err).Uint("patient_id", id).Msg("failed to remove some document files")
		}
	}

	pc.activity.LogDelete(GetUserID(c), "patient", id, p.FullName(), true)
	c.JSON(http.StatusOK, gin.H{"message": "patient deleted", "snapshot": snapshot, "documents_removed": len(docs)})
}

// GetHistory returns the medical history, or an empty one.
// GET /api/patients/:id/history
func (pc *PatientsController) GetHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := pc.store.GetByID(id); err != nil {
		respondStoreError(c, err, "load patient")
		return
	}
	h, err := pc.store.GetMedicalHistory(id)
	if errors.Is(err, patients.ErrMedicalHistoryNotFound) {
		c.JSON(http.StatusOK, entities.MedicalHistory{PatientID: id})
		return
	}
	if err != nil {
		respondStoreError(c, err, "get medical history")
		return
	}
	c.JSON(http.StatusOK, h)
}

type historyRequest struct {
	ChronicDiseases    string `json:"chronic_diseases"`
	Allergies          string `json:"allergies"`
	CurrentMedications string `json:"current_medications"`
	PreviousSurgeries  string `json:"previous_surgeries"`
	FamilyHistory      string `json:"family_history"`
	Notes              string `json:"notes"`
}

// PutHistory creates or replaces the medical history.
// PUT /api/patients/:id/history
func (pc *PatientsController) PutHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid medical history")
		return
	}

	h := &entities.MedicalHistory{
		PatientID:          id,
		ChronicDiseases:    req.ChronicDiseases,
		Allergies:          req.Allergies,
		CurrentMedications: req.CurrentMedications,
		PreviousSurgeries:  req.PreviousSurgeries,
		FamilyHistory:      req.FamilyHistory,
		Notes:              req.Notes,
	}
	if err := pc.store.UpsertMedicalHistory(h); err != nil {
		respondStoreError(c, err, "save medical history")
		return
	}

	pc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "medical_history", id, "updated medical history", nil)
	c.JSON(http.StatusOK, h)
}
