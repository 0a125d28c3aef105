package session

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
)

const eventBuffer = 64

type Options struct {
	Deps    Deps
	Poller  *scheduler.Poller
	Polling scheduler.Config
	// ProgramOptions are passed through to tea.NewProgram.
	ProgramOptions []tea.ProgramOption
}

// Run starts the reminder loop, forwards fired reminders into the session
// and blocks until the user quits. The loop is stopped before Run returns.
func Run(ctx context.Context, opts Options) error {
	events := make(chan scheduler.ReminderEvent, eventBuffer)
	cfg := opts.Polling
	next := cfg.OnReminder
	now := cfg.Now
	cfg.OnReminder = func(sp model.ScheduledProcedure, st model.Step) {
		if next != nil {
			next(sp, st)
		}
		ev := EventFor(sp, st, now)
		select {
		case events <- ev:
		default:
		}
	}
	cfg.Immediate = true

	poller := opts.Poller
	if poller == nil {
		poller = scheduler.NewPoller()
	}
	if _, err := poller.Start(ctx, cfg); err != nil {
		return fmt.Errorf("start reminder loop: %w", err)
	}
	defer poller.Stop()

	deps := opts.Deps
	deps.Events = events
	prog := tea.NewProgram(NewModel(ctx, deps), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.ProgramOptions...)...)
	_, err := prog.Run()
	return err
}

// EventFor builds the event shown for a fired step.
func EventFor(sp model.ScheduledProcedure, st model.Step, now func() time.Time) scheduler.ReminderEvent {
	ev := scheduler.ReminderEvent{
		ProcedureID:   sp.ID,
		ProcedureName: sp.Name,
		StepID:        st.ID,
		StepNumber:    st.Number,
		StepTitle:     st.Title,
	}
	if idx := sp.ReminderIndex(st.ID); idx >= 0 {
		ev.DueAt = sp.Reminders[idx].EffectiveDue()
	}
	if now == nil {
		now = time.Now
	}
	ev.FiredAt = now().UTC()
	return ev
}
