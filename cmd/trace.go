package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/knowledge"
	"github.com/abhisek/tutor/internal/mastery"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Apply knowledge-tracing updates to a mastery value",
	Long: `Apply one update (--correct or not) or a sequence of answers
(--answers 1101) to a starting mastery and print the prediction and the
number of correct answers still needed to reach mastery.`,
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().Float64("p", 0, "Starting mastery probability in [0, 1]")
	traceCmd.Flags().Bool("correct", false, "Apply a correct answer (default incorrect)")
	traceCmd.Flags().String("answers", "", "Sequence of answers, 1 for correct and 0 for incorrect")
	traceCmd.Flags().Float64("threshold", 0, "Mastery threshold (default from config)")
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	start, _ := cmd.Flags().GetFloat64("p")
	correct, _ := cmd.Flags().GetBool("correct")
	answers, _ := cmd.Flags().GetString("answers")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold == 0 {
		threshold = cfg.Tracing.MasteryThreshold
	}

	seq := []bool{correct}
	if answers != "" {
		seq = seq[:0]
		for _, r := range strings.ReplaceAll(answers, ",", "") {
			switch r {
			case '1', 'y', 'Y':
				seq = append(seq, true)
			case '0', 'n', 'N':
				seq = append(seq, false)
			default:
				return fmt.Errorf("invalid answer %q in --answers", r)
			}
		}
	}

	// Tracing math needs no concepts or stored state.
	empty, err := concept.NewCatalog(nil)
	if err != nil {
		return err
	}
	engine, err := knowledge.New(cfg.Tracing, empty, mastery.NewMemoryStore(), nil)
	if err != nil {
		return err
	}

	p, err := mastery.NewProbability(start)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%4s  %-9s  %8s  %8s  %10s\n", "Step", "Answer", "Mastery", "P(corr)", "To master")
	fmt.Fprintf(out, "%4d  %-9s  %8.4f  %8.4f  %10s\n", 0, "-", p.Float(), engine.PredictCorrect(p), stepsLabel(engine, p, threshold))
	for i, ok := range seq {
		if p, err = engine.Trace(p, ok); err != nil {
			return err
		}
		answer := "incorrect"
		if ok {
			answer = "correct"
		}
		fmt.Fprintf(out, "%4d  %-9s  %8.4f  %8.4f  %10s\n", i+1, answer, p.Float(), engine.PredictCorrect(p), stepsLabel(engine, p, threshold))
	}
	return nil
}

func stepsLabel(engine *knowledge.Engine, p mastery.Probability, threshold float64) string {
	n, err := engine.StepsToMastery(p, threshold)
	switch {
	case err != nil:
		return "error"
	case n == knowledge.Unreachable:
		return "unreachable"
	case n == 0:
		return "mastered"
	}
	return fmt.Sprintf("%d", n)
}
