package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/app"
	"github.com/abhisek/tutor/internal/knowledge"
)

var statsCmd = &cobra.Command{
	Use:   "stats <student>",
	Short: "Show a student's knowledge state rebuilt from the interaction log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if history, _ := cmd.Flags().GetBool("history"); history {
			return printHistory(cmd, a, args[0])
		}

		report, err := a.Report(ctx, args[0])
		if err != nil {
			return err
		}
		ready, err := a.ReadyToLearn(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%-24s  %7s  %7s  %11s  %5s  %7s  %6s\n",
			"Concept", "Mastery", "P(corr)", "To master", "Ready", "Answers", "Acc")
		fmt.Fprintln(out, strings.Repeat("─", 84))

		var mastered int
		for _, r := range report {
			steps := fmt.Sprintf("%d", r.StepsToMastery)
			switch r.StepsToMastery {
			case 0:
				steps = "mastered"
				mastered++
			case knowledge.Unreachable:
				steps = "unreachable"
			}
			ready := "no"
			if r.Ready {
				ready = "yes"
			}
			acc := "-"
			if r.Answers > 0 {
				acc = fmt.Sprintf("%.0f%%", r.Accuracy*100)
			}
			fmt.Fprintf(out, "%-24s  %7.3f  %7.3f  %11s  %5s  %7d  %6s\n",
				r.Concept.ID, r.Mastery.Float(), r.PredictCorrect, steps, ready, r.Answers, acc)
		}
		fmt.Fprintln(out, strings.Repeat("─", 84))
		fmt.Fprintf(out, "%d of %d concepts mastered\n", mastered, len(report))
		if len(ready) > 0 {
			fmt.Fprintf(out, "Ready to learn: %s\n", strings.Join(ready, ", "))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("history", false, "Show mastery before and after every logged answer")
}

func printHistory(cmd *cobra.Command, a *app.App, studentID string) error {
	steps, err := a.History(cmd.Context(), studentID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(steps) == 0 {
		fmt.Fprintf(out, "No interactions found for %s.\n", studentID)
		return nil
	}
	fmt.Fprintf(out, "%-6s  %-24s  %2s  %7s  %7s\n", "Seq", "Concept", "OK", "Before", "After")
	fmt.Fprintln(out, strings.Repeat("─", 54))
	for _, st := range steps {
		ok := "✓"
		if !st.Correct {
			ok = "✗"
		}
		fmt.Fprintf(out, "%-6d  %-24s  %2s  %7.3f  %7.3f\n",
			st.Sequence, truncate(st.ConceptID, 24), ok, st.Before.Float(), st.After.Float())
	}
	return nil
}
