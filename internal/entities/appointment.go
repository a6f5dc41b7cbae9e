package entities

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusBooked, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Holds reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Holds() bool {
	return s == AppointmentStatusBooked || s == AppointmentStatusConfirmed
}

type Appointment struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	PatientID    uint              `gorm:"index" json:"patient_id"`
	Patient      *Patient          `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Day          string            `gorm:"column:appointment_date;index;size:10" json:"appointment_date"`
	Time         datatypes.Time    `gorm:"column:appointment_time" json:"appointment_time"`
	DoctorID     *uint             `gorm:"index" json:"doctor_id,omitempty"`
	Type         string            `gorm:"column:appointment_type;size:50" json:"appointment_type"`
	Status       AppointmentStatus `gorm:"index;size:20" json:"status"`
	Notes        string            `gorm:"type:text" json:"notes,omitempty"`
	ReminderSent bool              `json:"reminder_sent"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// StartsAt combines Day and Time in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DayLayout, a.Day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid appointment day %q: %w", a.Day, err)
	}
	return day.Add(time.Duration(a.Time)), nil
}

// ClockTime formats a time-of-day as HH:MM.
func ClockTime(t datatypes.Time) string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// ParseClockTime accepts HH:MM or HH:MM:SS.
func ParseClockTime(s string) (datatypes.Time, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}
