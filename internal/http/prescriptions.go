package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/entities"
)

type PrescriptionsController struct {
	store    PrescriptionStore
	activity ActivityLogger
}

func NewPrescriptionsController(store PrescriptionStore, activity ActivityLogger) *PrescriptionsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &PrescriptionsController{store: store, activity: activity}
}

type medicineRequest struct {
	MedicineName string `json:"medicine_name" binding:"required"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type prescriptionRequest struct {
	PatientID uint              `json:"patient_id" binding:"required"`
	VisitID   *uint             `json:"visit_id"`
	DoctorID  *uint             `json:"doctor_id"`
	Notes     string            `json:"notes"`
	Details   []medicineRequest `json:"details" binding:"required,min=1,dive"`
}

// Create writes a prescription with at least one medicine.
// POST /api/prescriptions
func (pc *PrescriptionsController) Create(c *gin.Context) {
	var req prescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "patient_id and at least one medicine are required")
		return
	}

	p := &entities.Prescription{
		PatientID: req.PatientID,
		VisitID:   req.VisitID,
		DoctorID:  req.DoctorID,
		Notes:     req.Notes,
	}
	if p.DoctorID == nil {
		p.DoctorID = userRef(c)
	}
	for _, d := range req.Details {
		p.Details = append(p.Details, entities.PrescriptionDetail{
			MedicineName: d.MedicineName,
			Dosage:       d.Dosage,
			Frequency:    d.Frequency,
			Duration:     d.Duration,
			Instructions: d.Instructions,
		})
	}

	if err := pc.store.Create(p); err != nil {
		respondStoreError(c, err, "create prescription")
		return
	}
	pc.activity.LogActivity(GetUserID(c), entities.AuditEventCreate, "prescription", p.ID, "prescribed medicines", gin.H{
		"patient_id": p.PatientID,
		"medicines":  len(p.Details),
	})
	respondCreated(c, p)
}

// GET /api/prescriptions/:id
func (pc *PrescriptionsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := pc.store.GetByID(id)
	if err != nil {
		respondStoreError(c, err, "get prescription")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/patients/:id/prescriptions
func (pc *PrescriptionsController) ForPatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := pc.store.ForPatient(id)
	if err != nil {
		respondInternalError(c, err, "list patient prescriptions")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// GET /api/visits/:id/prescriptions
func (pc *PrescriptionsController) ForVisit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := pc.store.ForVisit(id)
	if err != nil {
		respondInternalError(c, err, "list visit prescriptions")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

// DELETE /api/prescriptions/:id
func (pc *PrescriptionsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := pc.store.Delete(id); err != nil {
		respondStoreError(c, err, "delete prescription")
		return
	}
	pc.activity.LogDelete(GetUserID(c), "prescription", id, "", true)
	respondSuccess(c, "prescription deleted")
}
