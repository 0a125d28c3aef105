package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/commands"
)

func newDeleteCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <sop>",
		Short: "Delete a procedure",
		Long: `Delete a procedure and its reminders.

Requires confirmation unless --force is used.

Examples:
  sopd delete sop-1234
  sopd delete sop-1234 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, ok := a.store.Get(cmd.Context(), args[0])
			if !ok {
				return commands.NotFound(args[0], "")
			}

			if !force {
				printf(cmd.OutOrStdout(), "About to delete: %s (%s)\n", sp.Name, sp.ID)
				printf(cmd.OutOrStdout(), "\nContinue? [y/N]: ")

				reader := bufio.NewReader(cmd.InOrStdin())
				response, err := reader.ReadString('\n')
				if err != nil && response == "" {
					return fmt.Errorf("read input: %w", err)
				}
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					printf(cmd.OutOrStdout(), "Cancelled.\n")
					return nil
				}
			}

			if err := a.store.Delete(cmd.Context(), sp.ID); err != nil {
				return fmt.Errorf("delete procedure: %w", err)
			}
			printf(cmd.OutOrStdout(), "Deleted: %s\n", sp.Name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
