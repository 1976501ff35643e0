package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/app"
	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/difficulty"
)

var quizCmd = &cobra.Command{
	Use:   "quiz <student> <concept>",
	Short: "Run an adaptive quiz session",
	Long: `Serve questions for one concept, adapting difficulty to the student's
recent answers. Answer each question with y (correct), n (incorrect) or
q to stop. Every answer is recorded in the interaction log.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuiz,
}

func init() {
	quizCmd.Flags().Uint64("seed", 0, "Seed for question selection (0 = random)")
	quizCmd.Flags().String("continue-from", "", "Start at this difficulty (easy, medium or hard)")
}

func runQuiz(cmd *cobra.Command, args []string) error {
	studentID, conceptID := args[0], args[1]

	var opts app.Options
	if seed, _ := cmd.Flags().GetUint64("seed"); seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(seed, seed))
	}
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	var prev *difficulty.Adaptor
	if from, _ := cmd.Flags().GetString("continue-from"); from != "" {
		lvl, err := difficulty.ParseLevel(from)
		if err != nil {
			return err
		}
		if prev, err = difficulty.NewAt(lvl, a.Config.Quiz.Window); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	sess, err := a.StartQuiz(ctx, studentID, conceptID, prev)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprintf(out, "Quiz on %s for %s. Answer y/n, q to quit.\n\n", conceptID, studentID)

	n := 0
loop:
	for sess.ShouldContinue() {
		q, err := sess.Next()
		if err != nil {
			var noQ *apperr.NoQuestionAvailableError
			if errors.As(err, &noQ) {
				what := "No"
				if noQ.Exhausted {
					what = "No unserved"
				}
				fmt.Fprintf(out, "%s %s questions for %s; ending the quiz.\n", what, noQ.Difficulty, noQ.ConceptID)
				break
			}
			return err
		}
		n++
		fmt.Fprintf(out, "Q%d [%s] %s (%s, about %s)\n", n, q.Difficulty, q.ID, q.Bloom, q.AvgSolveTime)

		asked := time.Now()
		var correct bool
		for {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				break loop
			}
			answer := strings.ToLower(strings.TrimSpace(in.Text()))
			switch answer {
			case "y", "yes":
				correct = true
			case "n", "no":
				correct = false
			case "q", "quit":
				break loop
			default:
				fmt.Fprintln(out, "Please answer y, n or q.")
				continue
			}
			break
		}

		res, err := sess.RecordResponse(ctx, q.ID, correct, time.Since(asked).Round(time.Second))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n  mastery %.3f · streak %d · accuracy %.0f%% · next %s\n\n",
			res.Feedback, res.Mastery.Float(), res.Streak, res.Accuracy*100, res.Difficulty)
	}
	if err := in.Err(); err != nil {
		return err
	}

	sum := sess.End()
	fmt.Fprintln(out, strings.Repeat("─", 48))
	fmt.Fprintf(out, "Questions: %d  Correct: %d  Accuracy: %.0f%%\n", sum.Total, sum.Correct, sum.Accuracy*100)
	fmt.Fprintf(out, "Best streak: %d  Avg time: %s  Final level: %s\n", sum.BestStreak, sum.AvgTime.Round(time.Second), sum.FinalDifficulty)

	if sum.Total > 0 {
		if err := a.SaveSnapshot(ctx, studentID); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return nil
}
