// Package session hosts the reminder loop inside an interactive terminal
// session. Reminders arrive on a channel and are appended to a log; typed
// commands go through the tracker.
package session

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
)

const reminderLogLimit = 20

// Lister reads the current collection.
type Lister interface {
	LoadAll(ctx context.Context) []model.ScheduledProcedure
}

// Actions are the state transitions a session can request.
type Actions interface {
	MarkStepComplete(ctx context.Context, procedureID, stepID string) (model.ScheduledProcedure, bool, error)
	SnoozeReminder(ctx context.Context, procedureID, stepID string, minutes int) (model.ScheduledProcedure, bool, error)
	RescheduleSOP(ctx context.Context, procedureID string, newStart time.Time) (model.ScheduledProcedure, bool, error)
	Archive(ctx context.Context, procedureID string) (model.ScheduledProcedure, bool, error)
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Up       string
	Down     string
	Complete string
	Snooze   string
	Archive  string
	Refresh  string
	Command  string
	Quit     string
}

type Deps struct {
	Store         Lister
	Tracker       Actions
	Events        <-chan scheduler.ReminderEvent
	DefaultSnooze int
	Now           func() time.Time
	Location      *time.Location
}

type Model struct {
	Procedures  []model.ScheduledProcedure
	SelectedID  string
	ReminderLog []scheduler.ReminderEvent
	Status      StatusBar
	LastError   error
	Quitting    bool
	Keys        GlobalKeyMap
	PaletteOpen bool

	ctx           context.Context
	store         Lister
	tracker       Actions
	events        <-chan scheduler.ReminderEvent
	defaultSnooze int
	now           func() time.Time
	loc           *time.Location
	commandInput  textinput.Model
	detail        viewport.Model
}

type ReminderDueMsg struct {
	Event scheduler.ReminderEvent
}

type RefreshMsg struct{}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type AppErrorMsg struct {
	Err error
}

func NewModel(ctx context.Context, deps Deps) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	snooze := deps.DefaultSnooze
	if snooze <= 0 {
		snooze = 10
	}

	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "complete <sop> <step> | snooze <sop> <step> [min] | reschedule <sop> <when> | archive <sop> | show [sop]"
	input.CharLimit = 256

	m := Model{
		ctx:           ctx,
		store:         deps.Store,
		tracker:       deps.Tracker,
		events:        deps.Events,
		defaultSnooze: snooze,
		now:           now,
		loc:           loc,
		commandInput:  input,
		detail:        viewport.New(56, 12),
		Keys: GlobalKeyMap{
			Up:       "k",
			Down:     "j",
			Complete: "c",
			Snooze:   "s",
			Archive:  "a",
			Refresh:  "r",
			Command:  "/",
			Quit:     "q",
		},
	}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	if m.store == nil {
		return
	}
	m.Procedures = m.store.LoadAll(m.ctx)
	if _, ok := m.selected(); !ok {
		m.SelectedID = ""
		if len(m.Procedures) > 0 {
			m.SelectedID = m.Procedures[0].ID
		}
	}
}

func (m Model) selected() (model.ScheduledProcedure, bool) {
	for _, sp := range m.Procedures {
		if sp.ID == m.SelectedID {
			return sp, true
		}
	}
	return model.ScheduledProcedure{}, false
}

func (m Model) selectedIndex() int {
	for i, sp := range m.Procedures {
		if sp.ID == m.SelectedID {
			return i
		}
	}
	return -1
}

// currentStep is the first incomplete step at or after the cursor, falling
// back to the first incomplete step overall.
func currentStep(sp model.ScheduledProcedure) (model.Step, bool) {
	for i := sp.CurrentStepIndex; i >= 0 && i < len(sp.Steps); i++ {
		if !sp.Steps[i].Completed {
			return sp.Steps[i], true
		}
	}
	for _, st := range sp.Steps {
		if !st.Completed {
			return st, true
		}
	}
	return model.Step{}, false
}
