package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
)

// CollectionKey names the single collection all scheduled procedures live in.
const CollectionKey = "sopd_saved_sops"

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	StartTime        *time.Time
	Status           *model.Status
	CurrentStepIndex *int
	Steps            []model.Step
	Reminders        []model.Reminder
}

func (p Patch) apply(sp *model.ScheduledProcedure) {
	if p.StartTime != nil {
		sp.StartTime = p.StartTime.UTC()
	}
	if p.Status != nil {
		sp.Status = *p.Status
	}
	if p.CurrentStepIndex != nil {
		sp.CurrentStepIndex = *p.CurrentStepIndex
	}
	if p.Steps != nil {
		sp.Steps = p.Steps
	}
	if p.Reminders != nil {
		sp.Reminders = p.Reminders
	}
}

// MutateFunc edits a procedure in place. Returning false discards the edit
// and leaves the stored collection untouched.
type MutateFunc func(sp *model.ScheduledProcedure) bool

// Store keeps every scheduled procedure in one collection and rewrites it
// whole on each mutation. The mutex only orders writers inside this process.
type Store struct {
	mu     sync.Mutex
	sub    Substrate
	key    string
	logger *slog.Logger
}

func NewStore(sub Substrate, logger *slog.Logger) (*Store, error) {
	if sub == nil {
		return nil, errors.New("storage: nil substrate")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{sub: sub, key: CollectionKey, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.sub.Close()
}

// Save schedules proc at start and puts it at the front of the collection.
// A stored record with the same id is replaced.
func (s *Store) Save(ctx context.Context, proc model.Procedure, start time.Time) (model.ScheduledProcedure, error) {
	if err := proc.Validate(); err != nil {
		return model.ScheduledProcedure{}, err
	}
	saved := model.ScheduledProcedure{
		Procedure:        proc,
		StartTime:        start.UTC(),
		Status:           model.StatusScheduled,
		CurrentStepIndex: 0,
		Reminders:        scheduler.ComputeReminders(proc.Steps, start),
	}
	saved = saved.Clone()
	if err := saved.Validate(); err != nil {
		return model.ScheduledProcedure{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load(ctx)
	updated := make([]model.ScheduledProcedure, 0, len(existing)+1)
	updated = append(updated, saved)
	for _, sp := range existing {
		if sp.ID == saved.ID {
			continue
		}
		updated = append(updated, sp)
	}
	if err := s.write(ctx, updated); err != nil {
		return model.ScheduledProcedure{}, err
	}
	s.logger.Info("procedure scheduled", "procedure", saved.ID, "steps", len(saved.Steps), "start", saved.StartTime)
	return saved.Clone(), nil
}

// LoadAll returns the stored collection, most recent first. Unreadable or
// corrupted state yields an empty collection.
func (s *Store) LoadAll(ctx context.Context) []model.ScheduledProcedure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Stamped is implemented by substrates that track when a key was written.
type Stamped interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// LastModified reports when the collection was last written. The bool is
// false when the substrate does not track it or nothing was written yet.
func (s *Store) LastModified(ctx context.Context) (time.Time, bool) {
	stamped, ok := s.sub.(Stamped)
	if !ok {
		return time.Time{}, false
	}
	at, err := stamped.UpdatedAt(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("read collection timestamp", "error", err)
		}
		return time.Time{}, false
	}
	return at, true
}

// Get looks up one procedure.
func (s *Store) Get(ctx context.Context, id string) (model.ScheduledProcedure, bool) {
	for _, sp := range s.LoadAll(ctx) {
		if sp.ID == id {
			return sp, true
		}
	}
	return model.ScheduledProcedure{}, false
}

// Update applies patch to the procedure with the given id. The bool is false
// when no such procedure exists.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (model.ScheduledProcedure, bool, error) {
	return s.Mutate(ctx, id, func(sp *model.ScheduledProcedure) bool {
		patch.apply(sp)
		return true
	})
}

// Mutate runs fn against the stored procedure under the store lock and
// persists the result. Missing procedures are reported with false.
func (s *Store) Mutate(ctx context.Context, id string, fn MutateFunc) (model.ScheduledProcedure, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ScheduledProcedure{}, false, nil
	}

	next := items[idx].Clone()
	if !fn(&next) {
		return items[idx], true, nil
	}
	if err := next.Validate(); err != nil {
		return items[idx], true, fmt.Errorf("update %s: %w", id, err)
	}
	items[idx] = next
	if err := s.write(ctx, items); err != nil {
		return model.ScheduledProcedure{}, true, err
	}
	return next.Clone(), true, nil
}

// Delete removes the procedure. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	kept := make([]model.ScheduledProcedure, 0, len(items))
	for _, sp := range items {
		if sp.ID != id {
			kept = append(kept, sp)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if err := s.write(ctx, kept); err != nil {
		return err
	}
	s.logger.Info("procedure deleted", "procedure", id)
	return nil
}

func (s *Store) load(ctx context.Context) []model.ScheduledProcedure {
	out := make([]model.ScheduledProcedure, 0)
	raw, err := s.sub.Read(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("read procedure collection", "error", err)
		}
		return out
	}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("decode procedure collection", "error", err)
		return make([]model.ScheduledProcedure, 0)
	}
	return out
}

func (s *Store) write(ctx context.Context, items []model.ScheduledProcedure) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode procedure collection: %w", err)
	}
	if err := s.sub.Write(ctx, s.key, payload); err != nil {
		return fmt.Errorf("write procedure collection: %w", err)
	}
	return nil
}
