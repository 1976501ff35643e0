package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log [student]",
	Short: "Inspect the interaction log",
	Long: `List a student's interactions in sequence order, or every student in
the log when no student is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		after, _ := cmd.Flags().GetInt64("after")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		repo := s.EventRepo()

		if len(args) == 0 {
			students, err := repo.Students(ctx)
			if err != nil {
				return fmt.Errorf("query students: %w", err)
			}
			if len(students) == 0 {
				fmt.Fprintln(out, "No interactions recorded yet.")
				return nil
			}
			for _, id := range students {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		records, err := repo.QueryInteractions(ctx, args[0], store.QueryOpts{Limit: limit, After: after})
		if err != nil {
			return fmt.Errorf("query interactions: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintf(out, "No interactions found for %s.\n", args[0])
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-19s  %-20s  %-16s  %-6s  %3s  %6s  %s\n",
			"Seq", "Timestamp", "Concept", "Question", "Level", "Try", "Time", "OK")
		fmt.Fprintln(out, strings.Repeat("─", 96))
		for _, r := range records {
			ok := "✓"
			if !r.Correct {
				ok = "✗"
			}
			fmt.Fprintf(out, "%-6d  %-19s  %-20s  %-16s  %-6s  %3d  %6s  %s\n",
				r.Sequence,
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(r.ConceptID, 20),
				truncate(r.QuestionID, 16),
				r.Difficulty,
				r.AttemptNo,
				r.TimeSpent.Round(100*time.Millisecond),
				ok,
			)
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func init() {
	logCmd.Flags().IntP("limit", "n", 50, "Number of interactions to show")
	logCmd.Flags().Int64("after", 0, "Only show interactions after this sequence")
}
