package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
)

func setupStore(t *testing.T) (*Store, Substrate) {
	t.Helper()
	sub, err := OpenSQLite(context.Background(), DriverPure, filepath.Join(t.TempDir(), "sopd-test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewStore(sub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, sub
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func sampleProcedure(id string) model.Procedure {
	return model.Procedure{
		ID:            id,
		Name:          "Month end close",
		Summary:       "Close the books",
		TotalDuration: 45,
		Steps: []model.Step{
			{ID: "s1", Number: 1, Title: "Export ledger", EstimatedDuration: 15, Tips: []string{"csv"}},
			{ID: "s2", Number: 2, Title: "Reconcile", EstimatedDuration: 30},
		},
		UnclearPoints: []string{"which bank account?"},
		CreatedAt:     time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestSaveSchedulesAndPrepends(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	start := parseRFC3339(t, "2024-01-01T09:00:00Z")

	first, err := store.Save(ctx, sampleProcedure("sop-a"), start)
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	if first.Status != model.StatusScheduled || first.CurrentStepIndex != 0 {
		t.Fatalf("unexpected initial state: %+v", first)
	}
	if len(first.Reminders) != 2 || first.Reminders[1].ScheduledTime.Format("15:04") != "09:15" {
		t.Fatalf("unexpected reminders: %+v", first.Reminders)
	}
	if first.TotalDuration != 45 {
		t.Fatalf("unexpected total duration %d", first.TotalDuration)
	}

	if _, err := store.Save(ctx, sampleProcedure("sop-b"), start); err != nil {
		t.Fatalf("save second: %v", err)
	}

	all := store.LoadAll(ctx)
	if len(all) != 2 || all[0].ID != "sop-b" || all[1].ID != "sop-a" {
		t.Fatalf("expected most recent first, got %v", ids(all))
	}
}

func TestSaveKeepsReminderStepCorrespondence(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	saved, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	stepIDs := make(map[string]bool)
	for _, st := range saved.Steps {
		stepIDs[st.ID] = true
	}
	for _, r := range saved.Reminders {
		if !stepIDs[r.StepID] {
			t.Fatalf("reminder for unknown step %q", r.StepID)
		}
		delete(stepIDs, r.StepID)
	}
	if len(stepIDs) != 0 {
		t.Fatalf("steps without reminders: %v", stepIDs)
	}
	if err := saved.Validate(); err != nil {
		t.Fatalf("saved procedure invalid: %v", err)
	}
}

func TestSaveReplacesSameID(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	start := parseRFC3339(t, "2024-01-01T09:00:00Z")
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), start); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, sampleProcedure("sop-b"), start); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), start.Add(time.Hour)); err != nil {
		t.Fatalf("save again: %v", err)
	}
	all := store.LoadAll(ctx)
	if len(all) != 2 || all[0].ID != "sop-a" || !all[0].StartTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected collection after resave: %v", ids(all))
	}
}

func TestSaveRejectsInvalidProcedure(t *testing.T) {
	store, _ := setupStore(t)
	if _, err := store.Save(context.Background(), model.Procedure{}, time.Now()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadAllFailsSoft(t *testing.T) {
	store, sub := setupStore(t)
	ctx := context.Background()

	if got := store.LoadAll(ctx); got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection for absent state, got %#v", got)
	}

	if err := sub.Write(ctx, CollectionKey, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if got := store.LoadAll(ctx); got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection for corrupted state, got %#v", got)
	}

	if _, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now()); err != nil {
		t.Fatalf("save over corrupted state: %v", err)
	}
	if got := store.LoadAll(ctx); len(got) != 1 {
		t.Fatalf("expected recovered collection, got %d", len(got))
	}
}

type failingSubstrate struct{}

func (failingSubstrate) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}
func (failingSubstrate) Write(context.Context, string, []byte) error { return errors.New("read-only") }
func (failingSubstrate) Close() error                                { return nil }

func TestStoreSurfacesWriteFailures(t *testing.T) {
	store, err := NewStore(failingSubstrate{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if got := store.LoadAll(ctx); len(got) != 0 {
		t.Fatalf("expected empty collection, got %d", len(got))
	}
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now()); err == nil {
		t.Fatal("expected write failure to surface")
	}
}

func TestUpdatePartialFields(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	start := parseRFC3339(t, "2024-01-01T09:00:00Z")
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), start); err != nil {
		t.Fatalf("save: %v", err)
	}

	status := model.StatusInProgress
	cursor := 1
	got, found, err := store.Update(ctx, "sop-a", Patch{Status: &status, CurrentStepIndex: &cursor})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if got.Status != status || got.CurrentStepIndex != 1 {
		t.Fatalf("patch not applied: %+v", got)
	}
	if !got.StartTime.Equal(start) || len(got.Reminders) != 2 || got.Name != "Month end close" {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	reloaded, ok := store.Get(ctx, "sop-a")
	if !ok || reloaded.Status != status {
		t.Fatalf("update not persisted: %+v", reloaded)
	}
}

func TestUpdateMissingIsNoop(t *testing.T) {
	store, _ := setupStore(t)
	status := model.StatusArchived
	_, found, err := store.Update(context.Background(), "nope", Patch{Status: &status})
	if err != nil || found {
		t.Fatalf("expected silent not-found, found=%v err=%v", found, err)
	}
}

func TestUpdateRejectsInvalidRecord(t *testing.T) {
	bogus := model.Status("paused")
	cases := map[string]Patch{
		"no reminders":    {Reminders: []model.Reminder{}},
		"unknown status":  {Status: &bogus},
		"orphan reminder": {Reminders: []model.Reminder{{StepID: "s1", ScheduledTime: time.Now()}, {StepID: "s9", ScheduledTime: time.Now()}}},
		"empty reminder":  {Reminders: []model.Reminder{{StepID: "s1"}, {StepID: "s2"}}},
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			store, _ := setupStore(t)
			ctx := context.Background()
			if _, err := store.Save(ctx, sampleProcedure("sop-a"), parseRFC3339(t, "2024-01-01T09:00:00Z")); err != nil {
				t.Fatalf("save: %v", err)
			}
			_, found, err := store.Update(ctx, "sop-a", patch)
			if err == nil || !found {
				t.Fatalf("expected validation error, found=%v err=%v", found, err)
			}
			got, ok := store.Get(ctx, "sop-a")
			if !ok || got.Status != model.StatusScheduled || len(got.Reminders) != 2 || got.Reminders[1].StepID != "s2" {
				t.Fatalf("invalid patch reached storage: %+v", got)
			}
		})
	}
}

func TestLastModified(t *testing.T) {
	fileSub, err := NewFileSubstrate(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("file substrate: %v", err)
	}
	sqliteStore, _ := setupStore(t)
	fileStore, err := NewStore(fileSub, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for name, store := range map[string]*Store{"sqlite": sqliteStore, "file": fileStore} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok := store.LastModified(ctx); ok {
				t.Fatal("expected no timestamp before the first write")
			}
			before := time.Now().UTC().Add(-time.Minute)
			if _, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now()); err != nil {
				t.Fatalf("save: %v", err)
			}
			at, ok := store.LastModified(ctx)
			if !ok || at.Before(before) {
				t.Fatalf("unexpected timestamp %v ok=%v", at, ok)
			}
		})
	}

	plain, err := NewStore(failingSubstrate{}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := plain.LastModified(context.Background()); ok {
		t.Fatal("expected no timestamp from a substrate without one")
	}
}

func TestMutateDiscardedEditIsNotPersisted(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, found, err := store.Mutate(ctx, "sop-a", func(sp *model.ScheduledProcedure) bool {
		sp.Name = "changed"
		return false
	})
	if err != nil || !found {
		t.Fatalf("mutate: found=%v err=%v", found, err)
	}
	got, _ := store.Get(ctx, "sop-a")
	if got.Name != "Month end close" {
		t.Fatalf("discarded edit persisted: %q", got.Name)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing should be silent: %v", err)
	}
	if err := store.Delete(ctx, "sop-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Get(ctx, "sop-a"); ok {
		t.Fatal("expected procedure removed")
	}
}

func TestStoreOverFileSubstrate(t *testing.T) {
	sub, err := NewFileSubstrate(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("file substrate: %v", err)
	}
	store, err := NewStore(sub, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	snooze := parseRFC3339(t, "2024-01-01T09:40:00Z")
	if _, err := store.Save(ctx, sampleProcedure("sop-a"), parseRFC3339(t, "2024-01-01T09:00:00Z")); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, _, err = store.Mutate(ctx, "sop-a", func(sp *model.ScheduledProcedure) bool {
		sp.Reminders[1].SnoozedUntil = &snooze
		return true
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	got, ok := store.Get(ctx, "sop-a")
	if !ok || got.Reminders[1].SnoozedUntil == nil || !got.Reminders[1].SnoozedUntil.Equal(snooze) {
		t.Fatalf("snooze not persisted: %+v", got.Reminders)
	}
	if got.Reminders[0].SnoozedUntil != nil {
		t.Fatal("unexpected snooze on first reminder")
	}
}

func ids(items []model.ScheduledProcedure) []string {
	out := make([]string, 0, len(items))
	for _, sp := range items {
		out = append(out, sp.ID)
	}
	return out
}
