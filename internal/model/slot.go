package model

import (
	"fmt"
	"time"
)

// SlotStatus is the lifecycle state of an interview slot.
type SlotStatus string

const (
	SlotStatusScheduled SlotStatus = "scheduled"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// SlotStatuses lists every valid status in display order.
var SlotStatuses = []SlotStatus{SlotStatusScheduled, SlotStatusCompleted, SlotStatusCancelled}

// ParseSlotStatus converts a raw string into a SlotStatus.
func ParseSlotStatus(raw string) (SlotStatus, error) {
	for _, s := range SlotStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown slot status %q", raw)
}

// SlotKey identifies the contended (date, time) resource.
type SlotKey struct {
	Date string
	Time string
}

func (k SlotKey) String() string {
	return k.Date + " " + k.Time
}

// InterviewSlot is a single (date, time) interview opportunity, either free
// or bound to one application. Rows are never deleted; cancellation keeps
// the row for history.
type InterviewSlot struct {
	Seq           int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	ID            string     `gorm:"size:36;uniqueIndex;not null" json:"id"`
	Date          string     `gorm:"column:slot_date;size:10;not null;index:idx_interview_slots_key,priority:1" json:"date"`
	Time          string     `gorm:"column:slot_time;size:8;not null;index:idx_interview_slots_key,priority:2" json:"time"`
	ApplicationID *string    `gorm:"size:64;index" json:"application_id"`
	CandidateName *string    `gorm:"size:256" json:"candidate_name"`
	JobTitle      *string    `gorm:"size:256" json:"job_title"`
	Status        SlotStatus `gorm:"size:16;not null;index" json:"status"`
	IsAvailable   bool       `gorm:"not null" json:"is_available"`
	Location      *string    `gorm:"size:256" json:"location"`
	Notes         *string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// Key returns the resource key of the slot.
func (s *InterviewSlot) Key() SlotKey {
	return SlotKey{Date: s.Date, Time: s.Time}
}

// Occupied reports whether an application is bound to the slot.
func (s *InterviewSlot) Occupied() bool {
	return !s.IsAvailable && s.ApplicationID != nil
}

// HeldBy reports whether the slot is occupied by the given application.
func (s *InterviewSlot) HeldBy(applicationID string) bool {
	return s.Occupied() && *s.ApplicationID == applicationID
}

// Occupy binds the slot to an application and marks it scheduled.
func (s *InterviewSlot) Occupy(applicationID string, candidateName, jobTitle *string) {
	app := applicationID
	s.ApplicationID = &app
	s.CandidateName = candidateName
	s.JobTitle = jobTitle
	s.IsAvailable = false
	s.Status = SlotStatusScheduled
}

// Release cancels the slot and frees the (date, time) resource.
func (s *InterviewSlot) Release() {
	s.Status = SlotStatusCancelled
	s.IsAvailable = true
	s.ApplicationID = nil
}

// SetStatus moves the slot to the given status. Cancelling releases the
// resource; cancelled slots cannot leave the cancelled state.
func (s *InterviewSlot) SetStatus(status SlotStatus) error {
	if s.Status == SlotStatusCancelled && status != SlotStatusCancelled {
		return fmt.Errorf("slot %s is cancelled", s.ID)
	}
	if status == SlotStatusCancelled {
		s.Release()
		return nil
	}
	s.Status = status
	return nil
}
