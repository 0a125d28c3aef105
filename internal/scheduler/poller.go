package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
)

const DefaultInterval = 30 * time.Second

var (
	ErrNoSource = errors.New("scheduler: procedure source is required")
	ErrNoMarker = errors.New("scheduler: reminder marker is required")
)

// Source returns every stored procedure. Implementations fail soft and
// return an empty slice when the store cannot be read.
type Source interface {
	LoadAll(ctx context.Context) []model.ScheduledProcedure
}

// Marker claims a due reminder. The due, triggered and step completion
// checks and the flip to triggered happen in one store mutation; claimed is
// true only when this call flipped the flag.
type Marker interface {
	ClaimDueReminder(ctx context.Context, procedureID, stepID string, now time.Time) (sp model.ScheduledProcedure, claimed bool, err error)
}

type Notifier interface {
	NotifyStep(sp model.ScheduledProcedure, step model.Step) error
}

// ReminderFunc is invoked once per due reminder.
type ReminderFunc func(sp model.ScheduledProcedure, step model.Step)

// ReminderEvent describes a reminder fired during a tick.
type ReminderEvent struct {
	ProcedureID   string
	ProcedureName string
	StepID        string
	StepNumber    int
	StepTitle     string
	DueAt         time.Time
	FiredAt       time.Time
}

type Config struct {
	Interval   time.Duration
	Source     Source
	Marker     Marker
	OnReminder ReminderFunc
	Notifier   Notifier
	Logger     *slog.Logger
	Now        func() time.Time
	// Immediate runs one check as soon as the loop starts instead of
	// waiting a full interval.
	Immediate bool
}

func (c Config) withDefaults() (Config, error) {
	if c.Source == nil {
		return c, ErrNoSource
	}
	if c.Marker == nil {
		return c, ErrNoMarker
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

// RunOnce performs a single reminder check and returns the reminders it fired.
func RunOnce(ctx context.Context, cfg Config) ([]ReminderEvent, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return tick(ctx, cfg, nil), nil
}

// tick scans a snapshot for candidates and fires only the reminders it
// manages to claim. stopped is checked between reminders.
func tick(ctx context.Context, cfg Config, stopped func() bool) []ReminderEvent {
	now := cfg.Now().UTC()
	fired := make([]ReminderEvent, 0)
	for _, snapshot := range cfg.Source.LoadAll(ctx) {
		if !snapshot.Status.IsActive() {
			continue
		}
		for _, rem := range snapshot.Reminders {
			if stopped != nil && stopped() {
				return fired
			}
			if !rem.IsDue(now) {
				continue
			}
			if st, ok := snapshot.Step(rem.StepID); !ok || st.Completed {
				continue
			}
			sp, claimed, err := cfg.Marker.ClaimDueReminder(ctx, snapshot.ID, rem.StepID, now)
			if err != nil {
				cfg.Logger.Error("claim reminder", "procedure", snapshot.ID, "step", rem.StepID, "error", err)
				continue
			}
			if !claimed {
				cfg.Logger.Debug("reminder no longer due", "procedure", snapshot.ID, "step", rem.StepID)
				continue
			}
			step, ok := sp.Step(rem.StepID)
			if !ok {
				continue
			}
			due := rem.EffectiveDue()
			if idx := sp.ReminderIndex(rem.StepID); idx >= 0 {
				due = sp.Reminders[idx].EffectiveDue()
			}
			if cfg.OnReminder != nil {
				cfg.OnReminder(sp, step)
			}
			if cfg.Notifier != nil {
				if err := cfg.Notifier.NotifyStep(sp, step); err != nil {
					cfg.Logger.Debug("step notification failed", "procedure", sp.ID, "step", step.ID, "error", err)
				}
			}
			fired = append(fired, ReminderEvent{
				ProcedureID:   sp.ID,
				ProcedureName: sp.Name,
				StepID:        step.ID,
				StepNumber:    step.Number,
				StepTitle:     step.Title,
				DueAt:         due,
				FiredAt:       now,
			})
		}
	}
	if len(fired) > 0 {
		cfg.Logger.Info("reminders fired", "count", len(fired))
	}
	return fired
}

// Poller owns at most one running reminder loop. Starting a new loop stops
// the previous one first.
type Poller struct {
	mu      sync.Mutex
	current *Handle
}

func NewPoller() *Poller {
	return &Poller{}
}

// Start launches the reminder loop and returns its handle.
func (p *Poller) Start(ctx context.Context, cfg Config) (*Handle, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
	h := &Handle{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	p.current = h
	go h.loop(ctx, cfg)
	return h, nil
}

// Stop halts the running loop, if any. Like Handle.Stop it must not be
// called from a reminder callback.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
}

type Handle struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Cancel asks the loop to exit without waiting for it. It is the only way
// to end the loop from inside OnReminder or a Notifier, which run on the
// loop goroutine; reminders left in the current tick are not fired.
func (h *Handle) Cancel() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// Stop halts the timer and waits for an in-flight tick to finish. It is safe
// to call more than once, but calling it from a reminder callback deadlocks;
// use Cancel there.
func (h *Handle) Stop() {
	h.Cancel()
	<-h.doneCh
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.doneCh
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

func (h *Handle) loop(ctx context.Context, cfg Config) {
	defer close(h.doneCh)

	wait := cfg.Interval
	if cfg.Immediate {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer stopTimer(timer)

	cfg.Logger.Debug("reminder loop started", "interval", cfg.Interval)
	for {
		select {
		case <-timer.C:
			tick(ctx, cfg, h.cancelled)
			if h.cancelled() {
				cfg.Logger.Debug("reminder loop stopped")
				return
			}
			timer = resetTimer(timer, cfg.Interval)
		case <-h.stopCh:
			cfg.Logger.Debug("reminder loop stopped")
			return
		case <-ctx.Done():
			cfg.Logger.Debug("reminder loop cancelled", "error", ctx.Err())
			return
		}
	}
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
