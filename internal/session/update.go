package session

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/sopd/internal/commands"
	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/scheduler"
	"github.com/sandeepkv93/sopd/internal/views"
)

func (m Model) Init() tea.Cmd {
	return waitForReminderCmd(m.events)
}

func waitForReminderCmd(ch <-chan scheduler.ReminderEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ReminderDueMsg{Event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.PaletteOpen {
			return m.handlePaletteKey(typed), nil
		}
		switch typed.String() {
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		case m.Keys.Command, ":":
			m.PaletteOpen = true
			m.commandInput.SetValue("")
			m.commandInput.Focus()
			m.Status = StatusBar{Text: "command palette active"}
			return m, nil
		case m.Keys.Down, "down":
			m.moveSelection(1)
			return m, nil
		case m.Keys.Up, "up":
			m.moveSelection(-1)
			return m, nil
		case m.Keys.Refresh:
			m.refresh()
			m.Status = StatusBar{Text: "refreshed"}
			return m, nil
		case m.Keys.Complete:
			return m.quickAction(func(sp model.ScheduledProcedure, st model.Step) string {
				return fmt.Sprintf("complete %s %s", sp.ID, st.ID)
			}), nil
		case m.Keys.Snooze:
			return m.quickAction(func(sp model.ScheduledProcedure, st model.Step) string {
				return fmt.Sprintf("snooze %s %s", sp.ID, st.ID)
			}), nil
		case m.Keys.Archive:
			if sp, ok := m.selected(); ok {
				return m.runCommand("archive " + sp.ID), nil
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.detail.Width = typed.Width/2 - 6
		m.detail.Height = typed.Height - 10
		return m, nil
	case ReminderDueMsg:
		m.ReminderLog = append(m.ReminderLog, typed.Event)
		if len(m.ReminderLog) > reminderLogLimit {
			m.ReminderLog = m.ReminderLog[len(m.ReminderLog)-reminderLogLimit:]
		}
		m.SelectedID = typed.Event.ProcedureID
		m.refresh()
		m.Status = StatusBar{Text: fmt.Sprintf("reminder: %s step %d %s", typed.Event.ProcedureName, typed.Event.StepNumber, typed.Event.StepTitle)}
		return m, waitForReminderCmd(m.events)
	case RefreshMsg:
		m.refresh()
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) moveSelection(delta int) {
	if len(m.Procedures) == 0 {
		return
	}
	idx := m.selectedIndex() + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.Procedures) {
		idx = len(m.Procedures) - 1
	}
	m.SelectedID = m.Procedures[idx].ID
}

func (m Model) quickAction(build func(model.ScheduledProcedure, model.Step) string) Model {
	sp, ok := m.selected()
	if !ok {
		m.Status = StatusBar{Text: "no procedure selected", IsError: true}
		return m
	}
	st, ok := currentStep(sp)
	if !ok {
		m.Status = StatusBar{Text: "all steps completed"}
		return m
	}
	return m.runCommand(build(sp, st))
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.PaletteOpen = false
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed"}
	case "enter":
		raw := m.commandInput.Value()
		m.PaletteOpen = false
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m = m.runCommand(raw)
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			return m
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		_ = cmd
	}
	return m
}

func (m Model) runCommand(raw string) Model {
	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m
	}
	if m.tracker == nil && cmd.Type != commands.TypeShow {
		m.Status = StatusBar{Text: "tracker not configured", IsError: true}
		return m
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Complete: func(a commands.CompleteArgs) (commands.Result, error) {
			sp, found, err := m.tracker.MarkStepComplete(m.ctx, a.ProcedureID, a.StepID)
			if err != nil {
				return commands.Result{}, err
			}
			if !found {
				return commands.Result{}, commands.NotFound(a.ProcedureID, a.StepID)
			}
			m.SelectedID = sp.ID
			return commands.Result{Message: fmt.Sprintf("completed %s (%d/%d, %s)", a.StepID, sp.CompletedCount(), len(sp.Steps), sp.Status)}, nil
		},
		Snooze: func(a commands.SnoozeArgs) (commands.Result, error) {
			minutes := a.Minutes
			if minutes <= 0 {
				minutes = m.defaultSnooze
			}
			_, found, err := m.tracker.SnoozeReminder(m.ctx, a.ProcedureID, a.StepID, minutes)
			if err != nil {
				return commands.Result{}, err
			}
			if !found {
				return commands.Result{}, commands.NotFound(a.ProcedureID, a.StepID)
			}
			return commands.Result{Message: fmt.Sprintf("snoozed %s for %d min", a.StepID, minutes)}, nil
		},
		Reschedule: func(a commands.RescheduleArgs) (commands.Result, error) {
			when, err := commands.ParseWhen(a.When, m.now(), m.loc)
			if err != nil {
				return commands.Result{}, err
			}
			sp, found, err := m.tracker.RescheduleSOP(m.ctx, a.ProcedureID, when)
			if err != nil {
				return commands.Result{}, err
			}
			if !found {
				return commands.Result{}, commands.NotFound(a.ProcedureID, "")
			}
			return commands.Result{Message: fmt.Sprintf("rescheduled %s to %s", sp.ID, sp.StartTime.In(m.loc).Format("2006-01-02 15:04"))}, nil
		},
		Archive: func(a commands.ArchiveArgs) (commands.Result, error) {
			_, found, err := m.tracker.Archive(m.ctx, a.ProcedureID)
			if err != nil {
				return commands.Result{}, err
			}
			if !found {
				return commands.Result{}, commands.NotFound(a.ProcedureID, "")
			}
			return commands.Result{Message: fmt.Sprintf("archived %s", a.ProcedureID)}, nil
		},
		Show: func(a commands.ShowArgs) (commands.Result, error) {
			if a.ProcedureID == "" {
				return commands.Result{Message: fmt.Sprintf("%d procedure(s)", len(m.Procedures))}, nil
			}
			for _, sp := range m.Procedures {
				if sp.ID == a.ProcedureID {
					m.SelectedID = sp.ID
					return commands.Result{Message: "showing " + sp.Name}, nil
				}
			}
			return commands.Result{}, commands.NotFound(a.ProcedureID, "")
		},
	})
	if err != nil {
		m.LastError = err
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m
	}
	m.refresh()
	m.Status = StatusBar{Text: res.Message}
	return m
}

func (m Model) View() string {
	now := m.now()
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	right := "(select a procedure)"
	if sp, ok := m.selected(); ok {
		var b strings.Builder
		b.WriteString(views.RenderProcedureDetail(sp, now, m.loc))
		if st, ok := currentStep(sp); ok {
			b.WriteString("\n\n")
			b.WriteString(views.RenderMarkdown(views.StepMarkdown(st)))
		}
		m.detail.SetContent(b.String())
		right = m.detail.View()
	}

	notification := ""
	if len(m.ReminderLog) > 0 {
		last := m.ReminderLog[len(m.ReminderLog)-1]
		notification = views.RenderReminderEvent(last, m.loc)
	}

	input := ""
	if m.PaletteOpen {
		input = m.commandInput.View()
	}

	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("sopd | procedures: %d | selected: %s", len(m.Procedures), m.SelectedID),
		LeftPane:     views.RenderProcedureList(m.Procedures, now, m.loc),
		RightPane:    right,
		StatusLine:   status,
		Notification: notification,
		Input:        input,
		Footer: fmt.Sprintf("keys: %s/%s move | %s complete | %s snooze | %s archive | %s refresh | %s cmd | %s quit",
			m.Keys.Down, m.Keys.Up, m.Keys.Complete, m.Keys.Snooze, m.Keys.Archive, m.Keys.Refresh, m.Keys.Command, m.Keys.Quit),
	})
}
