package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
)

const (
	progressWidth = 20
	timeLayout    = "Mon 02 Jan 15:04"
)

func ProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func statusBadge(status model.Status) string {
	label := "[" + strings.ToUpper(string(status)) + "]"
	switch status {
	case model.StatusCompleted:
		return doneStyle.Render(label)
	case model.StatusArchived:
		return mutedStyle.Render(label)
	case model.StatusInProgress:
		return alertStyle.Render(label)
	default:
		return label
	}
}

func formatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(timeLayout)
}

// RenderProcedureList prints one block per procedure with progress and the
// next reminder, if any.
func RenderProcedureList(items []model.ScheduledProcedure, now time.Time, loc *time.Location) string {
	if len(items) == 0 {
		return "(no scheduled procedures)"
	}
	var b strings.Builder
	for i, sp := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", statusBadge(sp.Status), titleStyle.Render(sp.Name), mutedStyle.Render(sp.ID)))
		b.WriteString(fmt.Sprintf("  start: %s | total: %s\n", formatTime(sp.StartTime, loc), model.FormatDuration(sp.TotalDuration)))
		b.WriteString(fmt.Sprintf("  progress: %s %d/%d\n", ProgressBar(sp.Progress(), progressWidth), sp.CompletedCount(), len(sp.Steps)))
		if next, ok := sp.NextReminderTime(now); ok && sp.Status.IsActive() {
			b.WriteString(fmt.Sprintf("  next reminder: %s\n", formatTime(next, loc)))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderProcedureDetail prints the step table of one procedure.
func RenderProcedureDetail(sp model.ScheduledProcedure, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", statusBadge(sp.Status), titleStyle.Render(sp.Name)))
	b.WriteString(fmt.Sprintf("id: %s\n", sp.ID))
	if sp.Summary != "" {
		b.WriteString(fmt.Sprintf("summary: %s\n", sp.Summary))
	}
	b.WriteString(fmt.Sprintf("start: %s | total: %s\n", formatTime(sp.StartTime, loc), model.FormatDuration(sp.TotalDuration)))
	b.WriteString(fmt.Sprintf("progress: %s %d%%\n\n", ProgressBar(sp.Progress(), progressWidth), int(sp.Progress()*100)))

	for i, st := range sp.Steps {
		cursor := " "
		if i == sp.CurrentStepIndex && sp.Status.IsActive() {
			cursor = ">"
		}
		check := "[ ]"
		if st.Completed {
			check = doneStyle.Render("[x]")
		}
		b.WriteString(fmt.Sprintf("%s %s %d. %s (%s) %s\n", cursor, check, st.Number, st.Title, model.FormatDuration(st.EstimatedDuration), mutedStyle.Render(st.ID)))
		if idx := sp.ReminderIndex(st.ID); idx >= 0 {
			b.WriteString("      " + reminderLine(sp.Reminders[idx], now, loc) + "\n")
		}
	}
	if len(sp.UnclearPoints) > 0 {
		b.WriteString("\nunclear:\n")
		for _, p := range sp.UnclearPoints {
			b.WriteString("- " + p + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func reminderLine(r model.Reminder, now time.Time, loc *time.Location) string {
	due := r.EffectiveDue()
	switch {
	case r.Triggered:
		return mutedStyle.Render("reminded " + formatTime(due, loc))
	case r.SnoozedUntil != nil:
		return "snoozed until " + formatTime(due, loc)
	case !due.After(now):
		return alertStyle.Render("due " + formatTime(due, loc))
	default:
		return "remind at " + formatTime(due, loc)
	}
}

// StepMarkdown renders a step as markdown for the detail pane.
func StepMarkdown(st model.Step) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("### Step %d: %s\n\n", st.Number, st.Title))
	if st.Owner != "" {
		b.WriteString(fmt.Sprintf("_Owner: %s_\n\n", st.Owner))
	}
	if st.Description != "" {
		b.WriteString(st.Description + "\n\n")
	}
	b.WriteString(fmt.Sprintf("Estimated: **%s**\n", model.FormatDuration(st.EstimatedDuration)))
	if len(st.Tips) > 0 {
		b.WriteString("\nTips:\n")
		for _, tip := range st.Tips {
			b.WriteString("- " + tip + "\n")
		}
	}
	return b.String()
}

func RenderReminderEvent(ev scheduler.ReminderEvent, loc *time.Location) string {
	return fmt.Sprintf("%s %s: step %d %s (due %s)",
		alertStyle.Render("reminder"),
		ev.ProcedureName,
		ev.StepNumber,
		ev.StepTitle,
		formatTime(ev.DueAt, loc),
	)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}
