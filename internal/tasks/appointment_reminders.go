package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/entities"
)

const defaultReminderLead = 24 * time.Hour

// ReminderSource finds upcoming appointments that still need a reminder.
type ReminderSource interface {
	DueReminders(now time.Time, within time.Duration) ([]entities.Appointment, error)
	MarkReminderSent(id uint) error
}

// AppointmentRemindersTask marks appointments starting within LeadHours as
// reminded and lists them in the activity log for reception to call.
type AppointmentRemindersTask struct {
	LeadHours int `json:"lead_hours"`
}

func (t AppointmentRemindersTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "appointment_reminders",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

type reminder struct {
	AppointmentID uint   `json:"appointment_id"`
	Patient       string `json:"patient"`
	Phone         string `json:"phone,omitempty"`
	StartsAt      string `json:"starts_at"`
}

// SendReminders marks every due appointment as reminded and returns how
// many were processed.
func SendReminders(source ReminderSource, auditor SystemAuditor, now time.Time, lead time.Duration) (int, error) {
	if lead <= 0 {
		lead = defaultReminderLead
	}
	due, err := source.DueReminders(now, lead)
	if err != nil {
		return 0, fmt.Errorf("due reminders: %w", err)
	}

	sent := 0
	for _, a := range due {
		if err := source.MarkReminderSent(a.ID); err != nil {
			return sent, fmt.Errorf("mark reminder %d: %w", a.ID, err)
		}
		sent++

		r := reminder{
			AppointmentID: a.ID,
			StartsAt:      a.Day + " " + entities.ClockTime(a.Time),
		}
		if a.Patient != nil {
			r.Patient = a.Patient.FullName()
			r.Phone = a.Patient.Phone
		}
		log.Info().Uint("appointment_id", a.ID).Str("starts_at", r.StartsAt).Msg("appointment reminder due")
		if auditor != nil {
			auditor.LogSystem(entities.AuditEventReminder, "appointment_reminder",
				fmt.Sprintf("Reminder for %s at %s", r.Patient, r.StartsAt), r)
		}
	}
	return sent, nil
}

// AppointmentRemindersProcessor creates a processor function for AppointmentRemindersTask.
func AppointmentRemindersProcessor(source ReminderSource, auditor SystemAuditor) backlite.QueueProcessor[AppointmentRemindersTask] {
	return func(ctx context.Context, task AppointmentRemindersTask) error {
		if source == nil {
			return fmt.Errorf("reminder source not configured")
		}
		sent, err := SendReminders(source, auditor, time.Now(), time.Duration(task.LeadHours)*time.Hour)
		if err != nil {
			return err
		}
		log.Info().Int("sent", sent).Msg("appointment reminders processed")
		return nil
	}
}

func NewAppointmentRemindersQueue(source ReminderSource, auditor SystemAuditor) backlite.Queue {
	return backlite.NewQueue(AppointmentRemindersProcessor(source, auditor))
}
