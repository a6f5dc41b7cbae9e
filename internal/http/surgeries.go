package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/clinicmgr/clinic/internal/entities"
)

type SurgeriesController struct {
	store    SurgeryStore
	activity ActivityLogger
	now      func() time.Time
}

func NewSurgeriesController(store SurgeryStore, activity ActivityLogger) *SurgeriesController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &SurgeriesController{store: store, activity: activity, now: time.Now}
}

type surgeryRequest struct {
	PatientID        uint                   `json:"patient_id"`
	Name             string                 `json:"surgery_name" binding:"required"`
	Type             string                 `json:"surgery_type"`
	ScheduledDate    string                 `json:"scheduled_date"`
	SurgeryDate      string                 `json:"surgery_date"`
	DoctorID         *uint                  `json:"doctor_id"`
	AssistantDoctors string                 `json:"assistant_doctors"`
	Anesthesia       string                 `json:"anesthesia"`
	DurationMinutes  *int                   `json:"duration_minutes"`
	Cost             decimal.Decimal        `json:"cost"`
	Status           entities.SurgeryStatus `json:"status"`
	Notes            string                 `json:"notes"`
}

// parseMoment accepts a calendar day or an RFC 3339 timestamp.
func parseMoment(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(entities.DayLayout, s, time.Local); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r surgeryRequest) apply(s *entities.Surgery) string {
	scheduled, err := parseMoment(r.ScheduledDate)
	if err != nil {
		return "scheduled_date must be YYYY-MM-DD or RFC 3339"
	}
	performed, err := parseMoment(r.SurgeryDate)
	if err != nil {
		return "surgery_date must be YYYY-MM-DD or RFC 3339"
	}
	if r.DurationMinutes != nil && *r.DurationMinutes < 0 {
		return "duration_minutes must not be negative"
	}

	s.Name = strings.TrimSpace(r.Name)
	s.Type = r.Type
	s.ScheduledDate = scheduled
	s.SurgeryDate = performed
	s.DoctorID = r.DoctorID
	s.AssistantDoctors = r.AssistantDoctors
	s.Anesthesia = r.Anesthesia
	s.DurationMinutes = r.DurationMinutes
	s.Cost = r.Cost
	s.Notes = r.Notes
	if r.Status != "" {
		s.Status = r.Status
	}
	return ""
}

// Create schedules a surgery.
// POST /api/surgeries
func (sc *SurgeriesController) Create(c *gin.Context) {
	var req surgeryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PatientID == 0 {
		respondBadRequest(c, "patient_id and surgery_name are required")
		return
	}
	s := &entities.Surgery{PatientID: req.PatientID}
	if msg := req.apply(s); msg != "" {
		respondBadRequest(c, msg)
		return
	}

	if err := sc.store.Add(s); err != nil {
		respondStoreError(c, err, "create surgery")
		return
	}
	sc.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "surgery", s.ID, "scheduled "+s.Name, gin.H{"patient_id": s.PatientID})
	respondCreated(c, s)
}

// List returns surgeries scheduled in ?from..?to.
// GET /api/surgeries
func (sc *SurgeriesController) List(c *gin.Context) {
	from, to, ok := parseRangeQuery(c, sc.now())
	if !ok {
		return
	}
	fromDay, _ := time.ParseInLocation(entities.DayLayout, from, time.Local)
	toDay, _ := time.ParseInLocation(entities.DayLayout, to, time.Local)

	list, err := sc.store.ByDateRange(fromDay, toDay.AddDate(0, 0, 1))
	if err != nil {
		respondInternalError(c, err, "list surgeries")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Upcoming lists scheduled surgeries for the next ?days= days.
// GET /api/surgeries/upcoming
func (sc *SurgeriesController) Upcoming(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		respondBadRequest(c, "days must be a positive integer")
		return
	}
	list, err := sc.store.Upcoming(sc.now(), days)
	if err != nil {
		respondInternalError(c, err, "upcoming surgeries")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// GET /api/surgeries/:id
func (sc *SurgeriesController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	s, err := sc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get surgery")
		return
	}
	c.JSON(http.StatusOK, s)
}

// GET /api/patients/:id/surgeries
func (sc *SurgeriesController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := sc.store.ForPatient(id)
	if err != nil {
		respondInternalError(c, err, "list patient surgeries")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Update edits a surgery. An empty status keeps the current one.
// PUT /api/surgeries/:id
func (sc *SurgeriesController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req surgeryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "surgery_name is required")
		return
	}
	s, err := sc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "load surgery")
		return
	}
	if msg := req.apply(s); msg != "" {
		respondBadRequest(c, msg)
		return
	}

	if err := sc.store.Update(s); err != nil {
		respondStoreError(c, err, "update surgery")
		return
	}
	sc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "surgery", id, "updated "+s.Name, nil)
	c.JSON(http.StatusOK, s)
}

type surgeryStatusRequest struct {
	Status entities.SurgeryStatus `json:"status" binding:"required"`
}

// SetStatus completes, cancels or postpones a surgery.
// PUT /api/surgeries/:id/status
func (sc *SurgeriesController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req surgeryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	if err := sc.store.UpdateStatus(id, req.Status, sc.now()); err != nil {
		respondStoreError(c, err, "update surgery status")
		return
	}
	sc.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "surgery", id, "surgery "+string(req.Status), nil)
	respondSuccess(c, "status updated")
}

// DELETE /api/surgeries/:id
func (sc *SurgeriesController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sc.store.Delete(id); err != nil {
		respondStoreError(c, err, "delete surgery")
		return
	}
	sc.activity.LogDelete(GetUserID(c), "surgery", id, "", true)
	respondSuccess(c, "surgery deleted")
}
