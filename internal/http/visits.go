package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/database/visits"
	"github.com/clinicmgr/clinic/internal/entities"
)

// FeeSource supplies the default examination fee for a visit type.
type FeeSource interface {
	FeeFor(visitType entities.VisitType) decimal.Decimal
}

type VisitsController struct {
	store    VisitStore
	fees     FeeSource
	activity ActivityLogger
	now      func() time.Time
}

func NewVisitsController(store VisitStore, fees FeeSource, activity ActivityLogger) *VisitsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &VisitsController{store: store, fees: fees, activity: activity, now: time.Now}
}

type enqueueRequest struct {
	PatientID      uint               `json:"patient_id" binding:"required"`
	VisitType      entities.VisitType `json:"visit_type"`
	ChiefComplaint string             `json:"chief_complaint"`
	DoctorID       *uint              `json:"doctor_id"`
	ExaminationFee *decimal.Decimal   `json:"examination_fee"`
	Notes          string             `json:"notes"`
}

// QueueResponse is the state of one day's waiting room.
type QueueResponse struct {
	Day     string                         `json:"day"`
	Visits  []entities.Visit               `json:"visits"`
	Counts  map[entities.VisitStatus]int64 `json:"counts"`
	Current *entities.Visit                `json:"current,omitempty"`
}

// Enqueue adds a patient to today's queue. Without an explicit fee the
// clinic's configured fee for the visit type is charged.
// POST /api/queue
func (vc *VisitsController) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patient_id is required")
		return
	}
	if req.ExaminationFee != nil && req.ExaminationFee.IsNegative() {
		respondBadRequest(c, "examination_fee must not be negative")
		return
	}

	v := &entities.Visit{
		PatientID:      req.PatientID,
		VisitType:      req.VisitType,
		ChiefComplaint: req.ChiefComplaint,
		DoctorID:       req.DoctorID,
		Notes:          req.Notes,
		VisitDate:      vc.now(),
	}
	if v.VisitType == "" {
		v.VisitType = entities.VisitTypeExamination
	}
	switch {
	case req.ExaminationFee != nil:
		v.ExaminationFee = *req.ExaminationFee
	case vc.fees != nil:
		v.ExaminationFee = vc.fees.FeeFor(v.VisitType)
	}

	if err := vc.store.Add(v); err != nil {
		respondStoreError(c, err, "enqueue visit")
		return
	}

	vc.activity.LogActivity(GetUserID(c), entities.AuditEventQueue, "visit", v.ID, "queued patient", gin.H{
		"patient_id":   v.PatientID,
		"queue_number": v.QueueNumber,
		"queue_day":    v.QueueDay,
	})
	respondCreated(c, v)
}

// Queue returns a day's visits in queue order with status counts.
// GET /api/queue?day=YYYY-MM-DD
func (vc *VisitsController) Queue(c *gin.Context) {
	day, ok := parseDayQuery(c, "day", vc.now())
	if !ok {
		return
	}

	list, err := vc.store.Queue(day)
	if err != nil {
		respondInternalError(c, err, "load queue")
		return
	}
	counts, err := vc.store.CountByStatus(day)
	if err != nil {
		respondInternalError(c, err, "count queue")
		return
	}

	resp := QueueResponse{Day: day, Visits: emptyIfNil(list), Counts: counts}
	current, err := vc.store.Current(day)
	switch {
	case err == nil:
		resp.Current = current
	case !errors.Is(err, visits.ErrVisitNotFound):
		respondInternalError(c, err, "load current visit")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CallNext finishes the current patient and starts the next one waiting.
// POST /api/queue/call-next?day=
func (vc *VisitsController) CallNext(c *gin.Context) {
	day, ok := parseDayQuery(c, "day", vc.now())
	if !ok {
		return
	}
	result, err := vc.store.CallNext(day)
	if err != nil {
		respondStoreError(c, err, "call next patient")
		return
	}

	vc.activity.LogActivity(GetUserID(c), entities.AuditEventQueue, "visit", result.Started.ID, "called next patient", gin.H{
		"queue_number": result.Started.QueueNumber,
	})
	c.JSON(http.StatusOK, result)
}

// Start, Complete and Cancel move a single visit through its lifecycle.
// POST /api/visits/:id/start
func (vc *VisitsController) Start(c *gin.Context) {
	vc.transition(c, entities.VisitStatusInProgress)
}

// POST /api/visits/:id/complete
func (vc *VisitsController) Complete(c *gin.Context) {
	vc.transition(c, entities.VisitStatusDone)
}

// POST /api/visits/:id/cancel
func (vc *VisitsController) Cancel(c *gin.Context) {
	vc.transition(c, entities.VisitStatusCancelled)
}

func (vc *VisitsController) transition(c *gin.Context, to entities.VisitStatus) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	v, err := vc.store.Transition(id, to)
	if err != nil {
		respondStoreError(c, err, "change visit status")
		return
	}
	vc.activity.LogActivity(GetUserID(c), entities.AuditEventQueue, "visit", id, "visit "+string(to), nil)
	c.JSON(http.StatusOK, v)
}

// Get returns one visit.
// GET /api/visits/:id
func (vc *VisitsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	v, err := vc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get visit")
		return
	}
	c.JSON(http.StatusOK, v)
}

// List returns visits between ?from and ?to.
// GET /api/visits
func (vc *VisitsController) List(c *gin.Context) {
	from, to, ok := parseRangeQuery(c, vc.now())
	if !ok {
		return
	}
	list, err := vc.store.ByDateRange(from, to)
	if err != nil {
		respondInternalError(c, err, "list visits")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// ForPatient lists a patient's visits, newest first.
// GET /api/patients/:id/visits
func (vc *VisitsController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := vc.store.ForPatient(id)
	if err != nil {
		respondInternalError(c, err, "list patient visits")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

type visitUpdateRequest struct {
	VisitType      entities.VisitType `json:"visit_type" binding:"required"`
	ChiefComplaint string             `json:"chief_complaint"`
	Diagnosis      string             `json:"diagnosis"`
	Treatment      string             `json:"treatment"`
	Notes          string             `json:"notes"`
	DoctorID       *uint              `json:"doctor_id"`
	ExaminationFee decimal.Decimal    `json:"examination_fee"`
	IsPaid         bool               `json:"is_paid"`
}

// Update edits the clinical notes and billing fields of a visit.
// PUT /api/visits/:id
func (vc *VisitsController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req visitUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "visit_type is required")
		return
	}
	if req.ExaminationFee.IsNegative() {
		respondBadRequest(c, "examination_fee must not be negative")
		return
	}

	v := &entities.Visit{
		ID:             id,
		VisitType:      req.VisitType,
		ChiefComplaint: req.ChiefComplaint,
		Diagnosis:      req.Diagnosis,
		Treatment:      req.Treatment,
		Notes:          req.Notes,
		DoctorID:       req.DoctorID,
		ExaminationFee: req.ExaminationFee,
		IsPaid:         req.IsPaid,
	}
	if err := vc.store.Update(v); err != nil {
		respondStoreError(c, err, "update visit")
		return
	}

	updated, err := vc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "reload visit")
		return
	}
	vc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "visit", id, "updated visit", nil)
	c.JSON(http.StatusOK, updated)
}

// Delete removes a visit record.
// DELETE /api/visits/:id
func (vc *VisitsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := vc.store.Delete(id); err != nil {
		respondStoreError(c, err, "delete visit")
		return
	}
	vc.activity.LogDelete(GetUserID(c), "visit", id, "", true)
	respondSuccess(c, "visit deleted")
}
