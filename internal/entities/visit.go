package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type VisitStatus string

const (
	VisitStatusWaiting    VisitStatus = "waiting"
	VisitStatusInProgress VisitStatus = "in_progress"
	VisitStatusDone       VisitStatus = "done"
	VisitStatusCancelled  VisitStatus = "cancelled"
)

type VisitType string

const (
	VisitTypeExamination   VisitType = "examination"
	VisitTypeReexamination VisitType = "re_examination"
	VisitTypeConsultation  VisitType = "consultation"
	VisitTypeEmergency     VisitType = "emergency"
)

// DayLayout is the format of the calendar-day columns used for queue and
// appointment lookups.
const DayLayout = "2006-01-02"

// Visit is one patient encounter. QueueNumber is unique within QueueDay.
type Visit struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	PatientID      uint            `gorm:"index" json:"patient_id"`
	Patient        *Patient        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	VisitDate      time.Time       `json:"visit_date"`
	QueueDay       string          `gorm:"size:10;uniqueIndex:idx_visit_queue,priority:1" json:"queue_day"`
	QueueNumber    int             `gorm:"uniqueIndex:idx_visit_queue,priority:2" json:"queue_number"`
	VisitType      VisitType       `gorm:"index;size:30" json:"visit_type"`
	ChiefComplaint string          `gorm:"type:text" json:"chief_complaint,omitempty"`
	Diagnosis      string          `gorm:"type:text" json:"diagnosis,omitempty"`
	Treatment      string          `gorm:"type:text" json:"treatment,omitempty"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	DoctorID       *uint           `gorm:"index" json:"doctor_id,omitempty"`
	Status         VisitStatus     `gorm:"index;size:20" json:"status"`
	ExaminationFee decimal.Decimal `gorm:"type:decimal(12,2)" json:"examination_fee"`
	IsPaid         bool            `json:"is_paid"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// QueueCounter holds the last queue number handed out for a day. It outlives
// deleted visits so numbers are never reused.
type QueueCounter struct {
	Day        string `gorm:"primaryKey;size:10"`
	LastNumber int
}

var visitTransitions = map[VisitStatus][]VisitStatus{
	VisitStatusWaiting:    {VisitStatusInProgress, VisitStatusCancelled},
	VisitStatusInProgress: {VisitStatusDone, VisitStatusCancelled},
}

// CanTransition reports whether a visit may move from one status to another.
// Done and cancelled are terminal.
func (s VisitStatus) CanTransition(to VisitStatus) bool {
	for _, next := range visitTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusWaiting, VisitStatusInProgress, VisitStatusDone, VisitStatusCancelled:
		return true
	}
	return false
}
