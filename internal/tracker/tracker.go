// Package tracker holds the progress, snooze and reschedule transitions of
// scheduled procedures. Every operation treats a missing procedure, step or
// reminder as a silent no-op and reports it with a false found flag.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
	"github.com/sandeepkv93/sopd/internal/storage"
)

// Mutator is the slice of the store the tracker needs.
type Mutator interface {
	Mutate(ctx context.Context, id string, fn storage.MutateFunc) (model.ScheduledProcedure, bool, error)
}

type Tracker struct {
	store  Mutator
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func New(store Mutator, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("tracker: nil store")
	}
	t := &Tracker{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MarkStepComplete flags the step done, advances the cursor, derives the
// status and silences the step's reminder. Repeating it changes nothing.
func (t *Tracker) MarkStepComplete(ctx context.Context, procedureID, stepID string) (model.ScheduledProcedure, bool, error) {
	stepFound := false
	sp, found, err := t.store.Mutate(ctx, procedureID, func(sp *model.ScheduledProcedure) bool {
		idx := sp.StepIndex(stepID)
		if idx < 0 {
			return false
		}
		stepFound = true
		sp.Steps[idx].Completed = true
		sp.CurrentStepIndex = furthestCompleted(sp.Steps)
		sp.Status = deriveStatus(*sp)
		if r := sp.ReminderIndex(stepID); r >= 0 {
			sp.Reminders[r].Triggered = true
		}
		return true
	})
	if err != nil || !found || !stepFound {
		return model.ScheduledProcedure{}, false, err
	}
	t.logger.Debug("step completed", "procedure", procedureID, "step", stepID, "status", sp.Status, "cursor", sp.CurrentStepIndex)
	return sp, true, nil
}

// ClaimDueReminder flips a due reminder to triggered for an active procedure
// whose step is still open. It never resets a reminder; the bool reports
// whether this call made the flip.
func (t *Tracker) ClaimDueReminder(ctx context.Context, procedureID, stepID string, now time.Time) (model.ScheduledProcedure, bool, error) {
	claimed := false
	sp, found, err := t.store.Mutate(ctx, procedureID, func(sp *model.ScheduledProcedure) bool {
		if !sp.Status.IsActive() {
			return false
		}
		idx := sp.ReminderIndex(stepID)
		if idx < 0 || !sp.Reminders[idx].IsDue(now) {
			return false
		}
		if st, ok := sp.Step(stepID); !ok || st.Completed {
			return false
		}
		sp.Reminders[idx].Triggered = true
		claimed = true
		return true
	})
	if err != nil || !found {
		return model.ScheduledProcedure{}, false, err
	}
	return sp, claimed, nil
}

// SnoozeReminder defers the step's reminder to now+minutes. The scheduled
// time and triggered flag are left alone.
func (t *Tracker) SnoozeReminder(ctx context.Context, procedureID, stepID string, minutes int) (model.ScheduledProcedure, bool, error) {
	until := t.now().UTC().Add(model.Minutes(minutes))
	reminderFound := false
	sp, found, err := t.store.Mutate(ctx, procedureID, func(sp *model.ScheduledProcedure) bool {
		idx := sp.ReminderIndex(stepID)
		if idx < 0 {
			return false
		}
		reminderFound = true
		sp.Reminders[idx].SnoozedUntil = &until
		return true
	})
	if err != nil || !found || !reminderFound {
		return model.ScheduledProcedure{}, false, err
	}
	t.logger.Debug("reminder snoozed", "procedure", procedureID, "step", stepID, "until", until)
	return sp, true, nil
}

// RescheduleSOP rebuilds every reminder from newStart. Trigger and snooze
// state is discarded, step completion is kept. Archived procedures are left
// as they are.
func (t *Tracker) RescheduleSOP(ctx context.Context, procedureID string, newStart time.Time) (model.ScheduledProcedure, bool, error) {
	sp, found, err := t.store.Mutate(ctx, procedureID, func(sp *model.ScheduledProcedure) bool {
		if sp.Status == model.StatusArchived {
			return false
		}
		sp.StartTime = newStart.UTC()
		sp.Reminders = scheduler.ComputeReminders(sp.Steps, newStart)
		sp.Status = model.StatusScheduled
		sp.CurrentStepIndex = 0
		return true
	})
	if err != nil || !found {
		return model.ScheduledProcedure{}, false, err
	}
	t.logger.Info("procedure rescheduled", "procedure", procedureID, "start", sp.StartTime)
	return sp, true, nil
}

// Archive moves the procedure to the terminal archived status.
func (t *Tracker) Archive(ctx context.Context, procedureID string) (model.ScheduledProcedure, bool, error) {
	sp, found, err := t.store.Mutate(ctx, procedureID, func(sp *model.ScheduledProcedure) bool {
		if sp.Status == model.StatusArchived {
			return false
		}
		sp.Status = model.StatusArchived
		return true
	})
	if err != nil || !found {
		return model.ScheduledProcedure{}, false, err
	}
	t.logger.Info("procedure archived", "procedure", procedureID)
	return sp, true, nil
}

// furthestCompleted is one past the last completed step, so finishing an
// earlier step never moves the cursor backwards.
func furthestCompleted(steps []model.Step) int {
	cursor := 0
	for i, st := range steps {
		if st.Completed {
			cursor = i + 1
		}
	}
	return cursor
}

func deriveStatus(sp model.ScheduledProcedure) model.Status {
	if sp.Status == model.StatusArchived {
		return sp.Status
	}
	if sp.AllStepsCompleted() {
		return model.StatusCompleted
	}
	if sp.CurrentStepIndex > 0 {
		return model.StatusInProgress
	}
	return sp.Status
}
