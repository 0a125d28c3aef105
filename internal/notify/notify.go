package notify

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
)

var ErrUnavailable = errors.New("notify: notifications unavailable")

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

type Notification struct {
	Title string
	Body  string
	// Tag identifies the reminder so repeated alerts can replace each other.
	Tag string
	At  time.Time
}

type DesktopNotifier interface {
	// Permission checks whether the notifier can deliver alerts.
	Permission() Permission
	Send(Notification) error
}

type NoopDesktopNotifier struct{}

func (NoopDesktopNotifier) Permission() Permission  { return PermissionDenied }
func (NoopDesktopNotifier) Send(Notification) error { return nil }

// ExecDesktopNotifier shells out to notify-send on Linux and osascript on macOS.
type ExecDesktopNotifier struct {
	lookPath func(string) (string, error)
}

func NewExecDesktopNotifier() ExecDesktopNotifier {
	return ExecDesktopNotifier{lookPath: exec.LookPath}
}

func (e ExecDesktopNotifier) binary() string {
	switch runtime.GOOS {
	case "linux":
		return "notify-send"
	case "darwin":
		return "osascript"
	default:
		return ""
	}
}

func (e ExecDesktopNotifier) Permission() Permission {
	bin := e.binary()
	if bin == "" {
		return PermissionDenied
	}
	lookPath := e.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath(bin); err != nil {
		return PermissionDenied
	}
	return PermissionGranted
}

func (e ExecDesktopNotifier) Send(n Notification) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("notify-send", notifySendArgs(n)...).Run()
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Body), escapeAppleScript(n.Title))
		return exec.Command("osascript", "-e", script).Run()
	default:
		return ErrUnavailable
	}
}

// notifySendArgs passes the tag as a synchronous hint so a later alert for the
// same reminder replaces the earlier one instead of stacking.
func notifySendArgs(n Notification) []string {
	args := []string{"--app-name=sopd"}
	if n.Tag != "" {
		args = append(args, "--hint=string:x-canonical-private-synchronous:"+n.Tag)
	}
	return append(args, n.Title, n.Body)
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// StepNotification builds the alert shown when a step's reminder fires.
func StepNotification(sp model.ScheduledProcedure, step model.Step, at time.Time) Notification {
	body := fmt.Sprintf("Step %d: %s", step.Number, step.Title)
	if d := strings.TrimSpace(step.Description); d != "" {
		body += "\n" + d
	}
	return Notification{
		Title: "SOP Reminder: " + sp.Name,
		Body:  body,
		Tag:   fmt.Sprintf("sop-%s-step-%s", sp.ID, step.ID),
		At:    at,
	}
}

// Center gates a DesktopNotifier behind a permission that is requested once.
type Center struct {
	notifier DesktopNotifier
	now      func() time.Time

	once       sync.Once
	mu         sync.Mutex
	permission Permission
}

func NewCenter(notifier DesktopNotifier) *Center {
	if notifier == nil {
		notifier = NoopDesktopNotifier{}
	}
	return &Center{notifier: notifier, now: time.Now, permission: PermissionDefault}
}

// RequestPermission asks the notifier once; later calls return the cached answer.
func (c *Center) RequestPermission() Permission {
	c.once.Do(func() {
		p := c.notifier.Permission()
		c.mu.Lock()
		c.permission = p
		c.mu.Unlock()
	})
	return c.Permission()
}

func (c *Center) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// NotifyStep delivers a step alert when permission was granted.
func (c *Center) NotifyStep(sp model.ScheduledProcedure, step model.Step) error {
	if c.Permission() != PermissionGranted {
		return ErrUnavailable
	}
	return c.notifier.Send(StepNotification(sp, step, c.now().UTC()))
}
