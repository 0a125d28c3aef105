package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/sopd/internal/model"
)

type fakeNotifier struct {
	permission Permission
	checks     int
	sent       []Notification
}

func (f *fakeNotifier) Permission() Permission {
	f.checks++
	return f.permission
}

func (f *fakeNotifier) Send(n Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

func sample() (model.ScheduledProcedure, model.Step) {
	step := model.Step{ID: "step-2", Number: 2, Title: "Reconcile", Description: "Match bank lines"}
	sp := model.ScheduledProcedure{Procedure: model.Procedure{ID: "sop-9", Name: "Month end", Steps: []model.Step{step}}}
	return sp, step
}

func TestStepNotificationFormat(t *testing.T) {
	sp, step := sample()
	at := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	n := StepNotification(sp, step, at)
	assert.Equal(t, "SOP Reminder: Month end", n.Title)
	assert.Equal(t, "Step 2: Reconcile\nMatch bank lines", n.Body)
	assert.Equal(t, "sop-sop-9-step-step-2", n.Tag)
	assert.Equal(t, at, n.At)

	step.Description = "  "
	assert.Equal(t, "Step 2: Reconcile", StepNotification(sp, step, at).Body)
}

func TestCenterRequestsPermissionOnce(t *testing.T) {
	fake := &fakeNotifier{permission: PermissionGranted}
	c := NewCenter(fake)
	assert.Equal(t, PermissionDefault, c.Permission())

	assert.Equal(t, PermissionGranted, c.RequestPermission())
	fake.permission = PermissionDenied
	assert.Equal(t, PermissionGranted, c.RequestPermission())
	assert.Equal(t, 1, fake.checks)

	sp, step := sample()
	require.NoError(t, c.NotifyStep(sp, step))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "SOP Reminder: Month end", fake.sent[0].Title)
}

func TestCenterDeniedIsUnavailable(t *testing.T) {
	fake := &fakeNotifier{permission: PermissionDenied}
	c := NewCenter(fake)
	c.RequestPermission()

	sp, step := sample()
	err := c.NotifyStep(sp, step)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Empty(t, fake.sent)
}

func TestCenterWithoutRequestIsUnavailable(t *testing.T) {
	c := NewCenter(&fakeNotifier{permission: PermissionGranted})
	sp, step := sample()
	assert.ErrorIs(t, c.NotifyStep(sp, step), ErrUnavailable)
}

func TestNilNotifierFallsBackToNoop(t *testing.T) {
	c := NewCenter(nil)
	assert.Equal(t, PermissionDenied, c.RequestPermission())
}

func TestExecNotifierPermissionDependsOnBinary(t *testing.T) {
	missing := ExecDesktopNotifier{lookPath: func(string) (string, error) { return "", errors.New("not found") }}
	assert.Equal(t, PermissionDenied, missing.Permission())

	present := ExecDesktopNotifier{lookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil }}
	if present.binary() == "" {
		assert.Equal(t, PermissionDenied, present.Permission())
		return
	}
	assert.Equal(t, PermissionGranted, present.Permission())
}

func TestEscapeAppleScript(t *testing.T) {
	assert.Equal(t, `say \"hi\"`, escapeAppleScript(`say "hi"`))
}

func TestNotifySendArgsCarryTag(t *testing.T) {
	sp, step := sample()
	n := StepNotification(sp, step, time.Now())
	assert.Equal(t, []string{
		"--app-name=sopd",
		"--hint=string:x-canonical-private-synchronous:" + n.Tag,
		n.Title,
		n.Body,
	}, notifySendArgs(n))

	untagged := notifySendArgs(Notification{Title: "t", Body: "b"})
	assert.Equal(t, []string{"--app-name=sopd", "t", "b"}, untagged)
}
