package model

import (
	"errors"
	"strings"
	"time"
)

// Reminder marks the start of one step. Triggered only ever moves from false
// to true; SnoozedUntil replaces ScheduledTime for due checks without
// changing it.
type Reminder struct {
	StepID        string     `json:"stepId"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	Triggered     bool       `json:"triggered"`
	SnoozedUntil  *time.Time `json:"snoozedUntil,omitempty"`
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.StepID) == "" {
		return errors.New("model: reminder stepId is required")
	}
	if r.ScheduledTime.IsZero() {
		return errors.New("model: reminder scheduledTime is required")
	}
	return nil
}

// EffectiveDue is the time the reminder becomes eligible to fire.
func (r Reminder) EffectiveDue() time.Time {
	if r.SnoozedUntil != nil && !r.SnoozedUntil.IsZero() {
		return *r.SnoozedUntil
	}
	return r.ScheduledTime
}

// IsDue reports whether an untriggered reminder has reached its effective due time.
func (r Reminder) IsDue(now time.Time) bool {
	if r.Triggered {
		return false
	}
	return !now.Before(r.EffectiveDue())
}

func (r Reminder) clone() Reminder {
	out := r
	if r.SnoozedUntil != nil {
		v := *r.SnoozedUntil
		out.SnoozedUntil = &v
	}
	return out
}
