package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/entities"
	"github.com/clinicmgr/clinic/internal/settingsstore"
)

// ProfileSource supplies the clinic profile, including working hours.
type ProfileSource interface {
	ClinicProfile() (settingsstore.ClinicProfile, error)
}

type AppointmentsController struct {
	store    AppointmentStore
	profile  ProfileSource
	activity ActivityLogger
	slot     time.Duration
	now      func() time.Time
}

func NewAppointmentsController(store AppointmentStore, profile ProfileSource, activity ActivityLogger, slotMinutes int) *AppointmentsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	return &AppointmentsController{
		store:    store,
		profile:  profile,
		activity: activity,
		slot:     time.Duration(slotMinutes) * time.Minute,
		now:      time.Now,
	}
}

type appointmentRequest struct {
	PatientID uint   `json:"patient_id" binding:"required"`
	Day       string `json:"appointment_date" binding:"required"`
	Time      string `json:"appointment_time" binding:"required"`
	DoctorID  *uint  `json:"doctor_id"`
	Type      string `json:"appointment_type"`
	Notes     string `json:"notes"`
}

func (r appointmentRequest) toAppointment() (*entities.Appointment, string) {
	if _, err := time.Parse(entities.DayLayout, r.Day); err != nil {
		return nil, "appointment_date must be YYYY-MM-DD"
	}
	at, err := entities.ParseClockTime(r.Time)
	if err != nil {
		return nil, "appointment_time must be HH:MM"
	}
	return &entities.Appointment{
		PatientID: r.PatientID,
		Day:       r.Day,
		Time:      at,
		DoctorID:  r.DoctorID,
		Type:      r.Type,
		Notes:     r.Notes,
	}, ""
}

// Create books an appointment if the slot is free.
// POST /api/appointments
func (ac *AppointmentsController) Create(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patient_id, appointment_date and appointment_time are required")
		return
	}
	a, msg := req.toAppointment()
	if a == nil {
		respondBadRequest(c, msg)
		return
	}

	if err := ac.store.Add(a); err != nil {
		respondStoreError(c, err, "book appointment")
		return
	}

	ac.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "appointment", a.ID, "booked appointment", gin.H{
		"patient_id": a.PatientID,
		"day":        a.Day,
		"time":       entities.ClockTime(a.Time),
	})
	respondCreated(c, a)
}

// List returns a single ?day= or a ?from..?to range.
// GET /api/appointments
func (ac *AppointmentsController) List(c *gin.Context) {
	if c.Query("from") == "" && c.Query("to") == "" {
		day, ok := parseDayQuery(c, "day", ac.now())
		if !ok {
			return
		}
		list, err := ac.store.ByDate(day)
		if err != nil {
			respondInternalError(c, err, "list appointments")
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(list))
		return
	}

	from, to, ok := parseRangeQuery(c, ac.now())
	if !ok {
		return
	}
	list, err := ac.store.ByDateRange(from, to)
	if err != nil {
		respondInternalError(c, err, "list appointments")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Upcoming lists holding appointments for the next ?days= days.
// GET /api/appointments/upcoming
func (ac *AppointmentsController) Upcoming(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		respondBadRequest(c, "days must be a positive integer")
		return
	}
	list, err := ac.store.Upcoming(ac.now(), days)
	if err != nil {
		respondInternalError(c, err, "upcoming appointments")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Slots lists free start times inside the clinic's working hours.
// GET /api/appointments/slots?day=&doctor_id=
func (ac *AppointmentsController) Slots(c *gin.Context) {
	day, ok := parseDayQuery(c, "day", ac.now())
	if !ok {
		return
	}
	doctorID, ok := parseOptionalQueryID(c, "doctor_id")
	if !ok {
		return
	}

	start, end := "09:00", "18:00"
	if ac.profile != nil {
		p, err := ac.profile.ClinicProfile()
		if err != nil {
			respondInternalError(c, err, "load working hours")
			return
		}
		start, end = p.WorkingHoursStart, p.WorkingHoursEnd
	}
	from, err := entities.ParseClockTime(start)
	if err != nil {
		respondInternalError(c, err, "parse working hours")
		return
	}
	until, err := entities.ParseClockTime(end)
	if err != nil {
		respondInternalError(c, err, "parse working hours")
		return
	}

	slots, err := ac.store.AvailableSlots(day, doctorID, from, until, ac.slot)
	if err != nil {
		respondStoreError(c, err, "available slots")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":          day,
		"slot_minutes": int(ac.slot / time.Minute),
		"slots":        emptyIfNil(slots),
	})
}

// Get returns one appointment.
// GET /api/appointments/:id
func (ac *AppointmentsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	a, err := ac.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get appointment")
		return
	}
	c.JSON(http.StatusOK, a)
}

// ForPatient lists a patient's appointments.
// GET /api/patients/:id/appointments
func (ac *AppointmentsController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ac.store.ForPatient(id)
	if err != nil {
		respondInternalError(c, err, "list patient appointments")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// Update reschedules an appointment. The patient cannot be changed.
// PUT /api/appointments/:id
func (ac *AppointmentsController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patient_id, appointment_date and appointment_time are required")
		return
	}
	a, msg := req.toAppointment()
	if a == nil {
		respondBadRequest(c, msg)
		return
	}
	a.ID = id

	if err := ac.store.Update(a); err != nil {
		respondStoreError(c, err, "update appointment")
		return
	}
	updated, err := ac.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "reload appointment")
		return
	}

	ac.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "appointment", id, "rescheduled appointment", gin.H{
		"day":  updated.Day,
		"time": entities.ClockTime(updated.Time),
	})
	c.JSON(http.StatusOK, updated)
}

type appointmentStatusRequest struct {
	Status entities.AppointmentStatus `json:"status" binding:"required"`
}

// SetStatus confirms, completes or marks a no-show.
// PUT /api/appointments/:id/status
func (ac *AppointmentsController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req appointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	if err := ac.store.UpdateStatus(id, req.Status); err != nil {
		respondStoreError(c, err, "update appointment status")
		return
	}
	ac.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "appointment", id, "appointment "+string(req.Status), nil)
	respondSuccess(c, "status updated")
}

// Cancel frees the slot.
// POST /api/appointments/:id/cancel
func (ac *AppointmentsController) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ac.store.Cancel(id); err != nil {
		respondStoreError(c, err, "cancel appointment")
		return
	}
	ac.activity.LogActivity(GetUserID(c), entities.AuditEventUpdate, "appointment", id, "appointment cancelled", nil)
	respondSuccess(c, "appointment cancelled")
}

// DELETE /api/appointments/:id
func (ac *AppointmentsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ac.store.Delete(id); err != nil {
		respondStoreError(c, err, "delete appointment")
		return
	}
	ac.activity.LogDelete(GetUserID(c), "appointment", id, "", true)
	respondSuccess(c, "appointment deleted")
}
