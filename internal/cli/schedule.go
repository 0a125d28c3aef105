package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/commands"
	"github.com/sandeepkv93/sopd/internal/generate"
	"github.com/sandeepkv93/sopd/internal/views"
)

func newScheduleCmd(a *app) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "schedule [file]",
		Short: "Schedule a procedure document",
		Long: `Schedule a procedure from a JSON or YAML document.

The document is read from the given file, or from stdin when the file is
omitted or "-". Reminders are computed from the start time and each step's
estimated duration.

Examples:
  sopd schedule onboarding.yaml --start "2024-05-01 09:00"
  cat sop.json | sopd schedule --start "+15m"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			when, err := commands.ParseWhen(start, a.now(), a.loc)
			if err != nil {
				return err
			}

			var gen generate.Generator = generate.NewDocumentGenerator()
			proc, err := gen.Generate(cmd.Context(), input)
			if err != nil {
				return err
			}
			saved, err := a.store.Save(cmd.Context(), proc, when)
			if err != nil {
				return fmt.Errorf("save procedure: %w", err)
			}
			printf(cmd.OutOrStdout(), "Scheduled %s\n\n%s\n", saved.ID, views.RenderProcedureDetail(saved, a.now(), a.loc))
			return nil
		},
	}
	cmd.Flags().StringVarP(&start, "start", "s", "now", "start time: now, +30m, HH:MM, YYYY-MM-DD HH:MM or RFC 3339")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(raw), nil
}
