package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/commands"
	"github.com/sandeepkv93/sopd/internal/model"
)

func newCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <sop> <step>",
		Short: "Mark a step as completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, found, err := a.tracker.MarkStepComplete(cmd.Context(), args[0], args[1])
			if err := report(err, found, args[0], args[1]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s: %d/%d steps done, status %s\n", sp.ID, sp.CompletedCount(), len(sp.Steps), sp.Status)
			return nil
		},
	}
}

func newSnoozeCmd(a *app) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "snooze <sop> <step>",
		Short: "Postpone a step's reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes <= 0 {
				minutes = a.cfg.DefaultSnoozeMinutes
			}
			sp, found, err := a.tracker.SnoozeReminder(cmd.Context(), args[0], args[1], minutes)
			if err := report(err, found, args[0], args[1]); err != nil {
				return err
			}
			idx := sp.ReminderIndex(args[1])
			printf(cmd.OutOrStdout(), "%s snoozed until %s\n", args[1], sp.Reminders[idx].EffectiveDue().In(a.loc).Format("15:04"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "minutes to snooze (default from config)")
	return cmd
}

func newRescheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <sop> <when>",
		Short: "Move a procedure to a new start time and re-arm its reminders",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := commands.ParseWhen(strings.Join(args[1:], " "), a.now(), a.loc)
			if err != nil {
				return err
			}
			sp, found, err := a.tracker.RescheduleSOP(cmd.Context(), args[0], when)
			if err := report(err, found, args[0], ""); err != nil {
				return err
			}
			if sp.Status == model.StatusArchived {
				printf(cmd.OutOrStdout(), "%s is archived, start time unchanged\n", sp.ID)
				return nil
			}
			printf(cmd.OutOrStdout(), "%s rescheduled to %s\n", sp.ID, sp.StartTime.In(a.loc).Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <sop>",
		Short: "Archive a procedure so it no longer fires reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, found, err := a.tracker.Archive(cmd.Context(), args[0])
			if err := report(err, found, args[0], ""); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s archived\n", sp.ID)
			return nil
		},
	}
}

func report(err error, found bool, procedureID, stepID string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", procedureID, err)
	}
	if !found {
		return commands.NotFound(procedureID, stepID)
	}
	return nil
}
