package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
)

type memoryStore struct {
	mu    sync.Mutex
	items []model.ScheduledProcedure
	marks int
}

func (s *memoryStore) LoadAll(context.Context) []model.ScheduledProcedure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduledProcedure, 0, len(s.items))
	for _, sp := range s.items {
		out = append(out, sp.Clone())
	}
	return out
}

func (s *memoryStore) ClaimDueReminder(_ context.Context, procedureID, stepID string, now time.Time) (model.ScheduledProcedure, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		sp := &s.items[i]
		if sp.ID != procedureID {
			continue
		}
		idx := sp.ReminderIndex(stepID)
		if idx < 0 || !sp.Status.IsActive() || !sp.Reminders[idx].IsDue(now) {
			return sp.Clone(), false, nil
		}
		if st, ok := sp.Step(stepID); !ok || st.Completed {
			return sp.Clone(), false, nil
		}
		sp.Reminders[idx].Triggered = true
		s.marks++
		return sp.Clone(), true, nil
	}
	return model.ScheduledProcedure{}, false, nil
}

func (s *memoryStore) completeStep(procedureID, stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != procedureID {
			continue
		}
		if idx := s.items[i].StepIndex(stepID); idx >= 0 {
			s.items[i].Steps[idx].Completed = true
		}
		if idx := s.items[i].ReminderIndex(stepID); idx >= 0 {
			s.items[i].Reminders[idx].Triggered = true
		}
	}
}

func (s *memoryStore) reminder(procedureID, stepID string) model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.items {
		if sp.ID == procedureID {
			return sp.Reminders[sp.ReminderIndex(stepID)]
		}
	}
	return model.Reminder{}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *recordingNotifier) NotifyStep(model.ScheduledProcedure, model.Step) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func newProcedure(id string, start time.Time) model.ScheduledProcedure {
	steps := []model.Step{
		{ID: "s1", Number: 1, Title: "First", EstimatedDuration: 15},
		{ID: "s2", Number: 2, Title: "Second", EstimatedDuration: 30},
	}
	return model.ScheduledProcedure{
		Procedure: model.Procedure{ID: id, Name: "Proc " + id, Steps: steps, TotalDuration: 45},
		StartTime: start,
		Status:    model.StatusScheduled,
		Reminders: ComputeReminders(steps, start),
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunOnceFiresDueReminderExactlyOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &memoryStore{items: []model.ScheduledProcedure{newProcedure("p1", start)}}
	notifier := &recordingNotifier{}

	var got []string
	cfg := Config{
		Source:   store,
		Marker:   store,
		Notifier: notifier,
		Now:      fixedNow(start.Add(20 * time.Minute)),
		OnReminder: func(sp model.ScheduledProcedure, st model.Step) {
			got = append(got, sp.ID+"/"+st.ID)
		},
	}

	fired, err := RunOnce(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(fired) != 2 || len(got) != 2 || notifier.calls != 2 {
		t.Fatalf("expected both reminders fired, fired=%d callbacks=%v notifications=%d", len(fired), got, notifier.calls)
	}

	fired, err = RunOnce(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(fired) != 0 || len(got) != 2 {
		t.Fatalf("reminders re-fired on second tick: %v", got)
	}
}

func TestRunOnceRespectsSnooze(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sp := newProcedure("p1", start)
	sp.Reminders[0].Triggered = true
	snooze := start.Add(25 * time.Minute)
	sp.Reminders[1].SnoozedUntil = &snooze
	store := &memoryStore{items: []model.ScheduledProcedure{sp}}

	cfg := Config{Source: store, Marker: store, Now: fixedNow(start.Add(20 * time.Minute))}
	fired, _ := RunOnce(context.Background(), cfg)
	if len(fired) != 0 {
		t.Fatalf("snoozed reminder fired early: %+v", fired)
	}

	cfg.Now = fixedNow(snooze)
	fired, _ = RunOnce(context.Background(), cfg)
	if len(fired) != 1 || fired[0].StepID != "s2" || !fired[0].DueAt.Equal(snooze) {
		t.Fatalf("expected s2 to fire at snooze time, got %+v", fired)
	}
	if !store.reminder("p1", "s2").Triggered {
		t.Fatal("expected s2 marked triggered")
	}
}

func TestRunOnceSkipsCompletedStepsAndInactiveProcedures(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rearmed := newProcedure("rearmed", start)
	rearmed.Steps[0].Completed = true
	rearmed.Steps[1].Completed = true

	done := newProcedure("done", start)
	done.Status = model.StatusCompleted

	archived := newProcedure("archived", start)
	archived.Status = model.StatusArchived

	store := &memoryStore{items: []model.ScheduledProcedure{rearmed, done, archived}}
	calls := 0
	cfg := Config{
		Source:     store,
		Marker:     store,
		Now:        fixedNow(start.Add(time.Hour)),
		OnReminder: func(model.ScheduledProcedure, model.Step) { calls++ },
	}
	fired, _ := RunOnce(context.Background(), cfg)
	if len(fired) != 0 || calls != 0 || store.marks != 0 {
		t.Fatalf("expected nothing to fire, fired=%d calls=%d marks=%d", len(fired), calls, store.marks)
	}
}

func TestRunOnceNotificationFailureDoesNotBlockMarking(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store := &memoryStore{items: []model.ScheduledProcedure{newProcedure("p1", start)}}
	notifier := &recordingNotifier{err: errors.New("permission denied")}
	calls := 0
	cfg := Config{
		Source:     store,
		Marker:     store,
		Notifier:   notifier,
		Now:        fixedNow(start),
		OnReminder: func(model.ScheduledProcedure, model.Step) { calls++ },
	}
	fired, _ := RunOnce(context.Background(), cfg)
	if len(fired) != 1 || calls != 1 {
		t.Fatalf("expected callback despite notifier error, fired=%d calls=%d", len(fired), calls)
	}
	if !store.reminder("p1", "s1").Triggered {
		t.Fatal("expected reminder marked triggered")
	}
}

func TestRunOnceRequiresSourceAndMarker(t *testing.T) {
	if _, err := RunOnce(context.Background(), Config{}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
	if _, err := RunOnce(context.Background(), Config{Source: &memoryStore{}}); !errors.Is(err, ErrNoMarker) {
		t.Fatalf("expected ErrNoMarker, got %v", err)
	}
}

func TestPollerLoopFiresAndStops(t *testing.T) {
	start := time.Now().UTC().Add(-time.Minute)
	store := &memoryStore{items: []model.ScheduledProcedure{newProcedure("p1", start)}}

	events := make(chan string, 4)
	poller := NewPoller()
	h, err := poller.Start(context.Background(), Config{
		Interval: 10 * time.Millisecond,
		Source:   store,
		Marker:   store,
		OnReminder: func(_ model.ScheduledProcedure, st model.Step) {
			events <- st.ID
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case id := <-events:
		if id != "s1" {
			t.Fatalf("unexpected step fired: %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reminder")
	}

	poller.Stop()
	select {
	case <-h.Done():
	default:
		t.Fatal("expected loop stopped")
	}
	h.Stop()
}

func TestPollerStartReplacesPreviousLoop(t *testing.T) {
	store := &memoryStore{}
	poller := NewPoller()
	cfg := Config{Interval: time.Hour, Source: store, Marker: store}

	first, err := poller.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := poller.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer poller.Stop()

	select {
	case <-first.Done():
	default:
		t.Fatal("expected first loop stopped when second started")
	}
	select {
	case <-second.Done():
		t.Fatal("expected second loop running")
	default:
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	store := &memoryStore{}
	ctx, cancel := context.WithCancel(context.Background())
	h, err := NewPoller().Start(ctx, Config{Interval: time.Hour, Source: store, Marker: store})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on cancel")
	}
}

func TestRunOnceSkipsReminderCompletedDuringTick(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sp := newProcedure("p1", start)
	sp.Steps[0].EstimatedDuration = 0
	sp.Reminders = ComputeReminders(sp.Steps, start)
	store := &memoryStore{items: []model.ScheduledProcedure{sp}}

	var fired []string
	cfg := Config{
		Source: store,
		Marker: store,
		Now:    fixedNow(start),
		OnReminder: func(sp model.ScheduledProcedure, st model.Step) {
			fired = append(fired, st.ID)
			if st.ID == "s1" {
				store.completeStep("p1", "s2")
			}
		},
	}
	events, err := RunOnce(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(fired) != 1 || fired[0] != "s1" || len(events) != 1 {
		t.Fatalf("expected only s1 to fire, got %v", fired)
	}
	if store.marks != 1 {
		t.Fatalf("expected one claimed reminder, got %d", store.marks)
	}
}

func TestHandleCancelFromCallback(t *testing.T) {
	start := time.Now().UTC().Add(-time.Hour)
	store := &memoryStore{items: []model.ScheduledProcedure{newProcedure("p1", start)}}

	handles := make(chan *Handle, 1)
	calls := 0
	h, err := NewPoller().Start(context.Background(), Config{
		Interval:  time.Hour,
		Immediate: true,
		Source:    store,
		Marker:    store,
		OnReminder: func(model.ScheduledProcedure, model.Step) {
			calls++
			(<-handles).Cancel()
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	handles <- h

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancel from callback")
	}
	if calls != 1 || store.marks != 1 {
		t.Fatalf("expected the tick to stop after the first reminder, calls=%d marks=%d", calls, store.marks)
	}
	h.Stop()
}
