package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <interactions.csv>",
	Short: "Append interaction history from a CSV file to the log",
	Long: `Append interactions from a CSV file with the header
student_id,question_id,concept,difficulty,score,time_spent,attempt_no,timestamp.
Malformed rows are skipped and listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := store.ImportCSV(cmd.Context(), s.EventRepo(), f)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d interactions, skipped %d rows.\n", res.Imported, len(res.Skipped))
		for _, reason := range res.Skipped {
			fmt.Fprintf(out, "  - %s\n", reason)
		}
		return nil
	},
}
