package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/model"
	"github.com/sandeepkv93/sopd/internal/notify"
	"github.com/sandeepkv93/sopd/internal/scheduler"
	"github.com/sandeepkv93/sopd/internal/session"
	"github.com/sandeepkv93/sopd/internal/views"
)

func newWatchCmd(a *app) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the reminder loop",
		Long: `Run the reminder loop until interrupted.

By default an interactive session shows scheduled procedures, a reminder log
and a command palette. With --headless reminders are printed one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			center := a.notificationCenter()
			pollCfg := scheduler.Config{
				Interval: a.cfg.PollInterval(),
				Source:   a.store,
				Marker:   a.tracker,
				Notifier: center,
				Logger:   a.logger,
				Now:      a.now,
			}

			if headless {
				return a.watchHeadless(ctx, cmd, pollCfg)
			}
			return session.Run(ctx, session.Options{
				Deps: session.Deps{
					Store:         a.store,
					Tracker:       a.tracker,
					DefaultSnooze: a.cfg.DefaultSnoozeMinutes,
					Now:           a.now,
					Location:      a.loc,
				},
				Polling: pollCfg,
			})
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "print reminders instead of starting the interactive session")
	return cmd
}

func (a *app) notificationCenter() *notify.Center {
	var desktop notify.DesktopNotifier = notify.NoopDesktopNotifier{}
	if a.cfg.DesktopNotifications {
		desktop = notify.NewExecDesktopNotifier()
	}
	center := notify.NewCenter(desktop)
	perm := center.RequestPermission()
	a.logger.Debug("notification permission", "state", perm)
	return center
}

func (a *app) watchHeadless(ctx context.Context, cmd *cobra.Command, cfg scheduler.Config) error {
	out := cmd.OutOrStdout()
	cfg.Immediate = true
	cfg.OnReminder = func(sp model.ScheduledProcedure, st model.Step) {
		printf(out, "%s\n", views.RenderReminderEvent(session.EventFor(sp, st, a.now), a.loc))
	}

	h, err := scheduler.NewPoller().Start(ctx, cfg)
	if err != nil {
		return err
	}
	a.logger.Info("watching for reminders", "interval", cfg.Interval)
	<-h.Done()
	return nil
}
