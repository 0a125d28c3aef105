package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/commands"
	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/views"
)

func newListCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled procedures, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := a.store.LoadAll(cmd.Context())
			if !all {
				kept := make([]model.ScheduledProcedure, 0, len(items))
				for _, sp := range items {
					if sp.Status != model.StatusArchived {
						kept = append(kept, sp)
					}
				}
				items = kept
			}
			printf(cmd.OutOrStdout(), "%s\n", views.RenderProcedureList(items, a.now(), a.loc))
			if at, ok := a.store.LastModified(cmd.Context()); ok {
				printf(cmd.OutOrStdout(), "updated %s\n", at.In(a.loc).Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include archived procedures")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sop>",
		Short: "Show the steps and reminders of one procedure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, ok := a.store.Get(cmd.Context(), args[0])
			if !ok {
				return commands.NotFound(args[0], "")
			}
			out := views.RenderProcedureDetail(sp, a.now(), a.loc)
			for _, st := range sp.Steps {
				if !st.Completed {
					out += "\n\n" + views.RenderMarkdown(views.StepMarkdown(st))
					break
				}
			}
			printf(cmd.OutOrStdout(), "%s\n", out)
			return nil
		},
	}
}

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the next upcoming reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			var (
				best  model.ScheduledProcedure
				when  = now
				found bool
			)
			for _, sp := range a.store.LoadAll(cmd.Context()) {
				if !sp.Status.IsActive() {
					continue
				}
				next, ok := sp.NextReminderTime(now)
				if !ok {
					continue
				}
				if !found || next.Before(when) {
					best, when, found = sp, next, true
				}
			}
			if !found {
				printf(cmd.OutOrStdout(), "no upcoming reminders\n")
				return nil
			}
			printf(cmd.OutOrStdout(), "%s %s at %s (in %s)\n", best.ID, best.Name, when.In(a.loc).Format("2006-01-02 15:04"), when.Sub(now).Round(time.Minute))
			return nil
		},
	}
}
