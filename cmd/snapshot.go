package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/app"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [student...]",
	Short: "Save knowledge snapshots so later loads replay less history",
	Long: `Rebuild each named student (or every student in the log when none are
named) and save their knowledge state as a snapshot. Older snapshots beyond
the configured count are pruned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		students := args
		if len(students) == 0 {
			if students, err = a.ColdStartAll(ctx); err != nil {
				return err
			}
		}
		for _, id := range students {
			if err := a.SaveSnapshot(ctx, id); err != nil {
				return fmt.Errorf("snapshot %s: %w", id, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d snapshot(s).\n", len(students))
		return nil
	},
}
