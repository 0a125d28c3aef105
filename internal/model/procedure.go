package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("model: invalid procedure status")
	ErrReminderMissing = errors.New("model: reminder set does not match steps")
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// IsActive reports whether reminders of a procedure in this status may fire.
func (s Status) IsActive() bool {
	return s != StatusCompleted && s != StatusArchived
}

type Step struct {
	ID                string   `json:"id" yaml:"id"`
	Number            int      `json:"stepNumber" yaml:"stepNumber"`
	Title             string   `json:"title" yaml:"title"`
	Description       string   `json:"description" yaml:"description"`
	Owner             string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	EstimatedDuration int      `json:"estimatedDuration" yaml:"estimatedDuration"`
	Tips              []string `json:"tips" yaml:"tips"`
	Completed         bool     `json:"completed" yaml:"completed"`
}

// Procedure is the generated plan handed over by the generation collaborator.
// TotalDuration is fixed at generation time.
type Procedure struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	TotalDuration int       `json:"totalDuration"`
	Steps         []Step    `json:"steps"`
	UnclearPoints []string  `json:"unclearPoints"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (p Procedure) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("model: procedure id is required")
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, st := range p.Steps {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("model: step %d id is required", i+1)
		}
		if seen[st.ID] {
			return fmt.Errorf("model: duplicate step id %q", st.ID)
		}
		seen[st.ID] = true
	}
	return nil
}

// StepIndex returns the position of the step with the given id, or -1.
func (p Procedure) StepIndex(stepID string) int {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

// SumDurations adds up the estimated durations of steps.
func SumDurations(steps []Step) int {
	total := 0
	for _, st := range steps {
		total += st.EstimatedDuration
	}
	return total
}

type ScheduledProcedure struct {
	Procedure
	StartTime        time.Time  `json:"startTime"`
	Status           Status     `json:"status"`
	CurrentStepIndex int        `json:"currentStepIndex"`
	Reminders        []Reminder `json:"reminders"`
}

func (sp ScheduledProcedure) Validate() error {
	if err := sp.Procedure.Validate(); err != nil {
		return err
	}
	if !sp.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, sp.Status)
	}
	if len(sp.Reminders) != len(sp.Steps) {
		return fmt.Errorf("%w: %d reminders for %d steps", ErrReminderMissing, len(sp.Reminders), len(sp.Steps))
	}
	seen := make(map[string]bool, len(sp.Reminders))
	for _, r := range sp.Reminders {
		if err := r.Validate(); err != nil {
			return err
		}
		if sp.StepIndex(r.StepID) < 0 {
			return fmt.Errorf("%w: unknown step %q", ErrReminderMissing, r.StepID)
		}
		if seen[r.StepID] {
			return fmt.Errorf("%w: duplicate reminder for step %q", ErrReminderMissing, r.StepID)
		}
		seen[r.StepID] = true
	}
	return nil
}

// ReminderIndex returns the position of the reminder referencing stepID, or -1.
func (sp ScheduledProcedure) ReminderIndex(stepID string) int {
	for i := range sp.Reminders {
		if sp.Reminders[i].StepID == stepID {
			return i
		}
	}
	return -1
}

// Step looks up a step by id.
func (sp ScheduledProcedure) Step(stepID string) (Step, bool) {
	i := sp.StepIndex(stepID)
	if i < 0 {
		return Step{}, false
	}
	return sp.Steps[i], true
}

// AllStepsCompleted is vacuously true for an empty step list.
func (sp ScheduledProcedure) AllStepsCompleted() bool {
	for _, st := range sp.Steps {
		if !st.Completed {
			return false
		}
	}
	return true
}

// CompletedCount returns how many steps are marked complete.
func (sp ScheduledProcedure) CompletedCount() int {
	n := 0
	for _, st := range sp.Steps {
		if st.Completed {
			n++
		}
	}
	return n
}

// Progress is the fraction of completed steps, 0 for a procedure without steps.
func (sp ScheduledProcedure) Progress() float64 {
	if len(sp.Steps) == 0 {
		return 0
	}
	return float64(sp.CompletedCount()) / float64(len(sp.Steps))
}

// Clone returns a deep copy so callers can mutate slices without touching the original.
func (sp ScheduledProcedure) Clone() ScheduledProcedure {
	out := sp
	out.Steps = make([]Step, len(sp.Steps))
	for i, st := range sp.Steps {
		st.Tips = append([]string(nil), st.Tips...)
		out.Steps[i] = st
	}
	out.UnclearPoints = append([]string(nil), sp.UnclearPoints...)
	out.Reminders = make([]Reminder, len(sp.Reminders))
	for i, r := range sp.Reminders {
		out.Reminders[i] = r.clone()
	}
	return out
}

// NextReminderTime returns the earliest effective due time after now among
// untriggered reminders whose step is still open.
func (sp ScheduledProcedure) NextReminderTime(now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, r := range sp.Reminders {
		if r.Triggered {
			continue
		}
		if st, ok := sp.Step(r.StepID); ok && st.Completed {
			continue
		}
		due := r.EffectiveDue()
		if !due.After(now) {
			continue
		}
		if !found || due.Before(next) {
			next = due
			found = true
		}
	}
	return next, found
}
