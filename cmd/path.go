package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/app"
	"github.com/abhisek/tutor/internal/path"
)

var pathCmd = &cobra.Command{
	Use:   "path [student]",
	Short: "Build a learning path from a student's knowledge state",
	Args: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runPath,
}

func init() {
	pathCmd.Flags().Int("n", 0, "Number of concepts in the path (default from config)")
	pathCmd.Flags().String("preference", "", "balanced, progressive or review (default from config)")
	pathCmd.Flags().StringSlice("weak", nil, "Weak concepts to boost (default computed from mastery)")
	pathCmd.Flags().Bool("all", false, "Refresh paths for every student in the log")
}

func runPath(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if all, _ := cmd.Flags().GetBool("all"); all {
		if err := a.RefreshPaths(ctx); err != nil {
			return err
		}
		students, err := a.Events().Students(ctx)
		if err != nil {
			return err
		}
		for _, id := range students {
			p, err := a.Paths.Path(id)
			if err != nil {
				return err
			}
			n, ok, err := a.NextConcept(id)
			if err != nil {
				return err
			}
			next := "-"
			if ok {
				next = n.ConceptID
			}
			fmt.Fprintf(out, "%-20s  %2d concepts  %4d min  next: %s\n", id, len(p.Nodes), p.Duration(), next)
		}
		return nil
	}

	var opts app.PathOptions
	opts.NumConcepts, _ = cmd.Flags().GetInt("n")
	if pref, _ := cmd.Flags().GetString("preference"); pref != "" {
		if opts.Preference, err = path.ParsePreference(pref); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("weak") {
		opts.Weak, _ = cmd.Flags().GetStringSlice("weak")
	}

	p, err := a.BuildPath(ctx, args[0], opts)
	if err != nil {
		return err
	}
	printPath(out, p)
	return nil
}

func printPath(out io.Writer, p path.Path) {
	fmt.Fprintf(out, "Learning path for %s (%s)\n", p.StudentID, p.Preference)
	if len(p.Weak) > 0 {
		fmt.Fprintf(out, "Weak concepts: %s\n", strings.Join(p.Weak, ", "))
	}
	fmt.Fprintln(out, strings.Repeat("─", 96))

	if len(p.Nodes) == 0 {
		fmt.Fprintln(out, "Nothing to study: every reachable concept is mastered.")
		return
	}

	fmt.Fprintf(out, "%3s  %-24s  %7s  %4s  %-21s  %4s  %8s\n",
		"#", "Concept", "Mastery", "Diff", "Bloom", "Mins", "Priority")
	for _, n := range p.Nodes {
		mark := ""
		if n.Weak {
			mark = " *"
		}
		bloom := fmt.Sprintf("%s -> %s", n.Bloom, n.TargetBloom)
		fmt.Fprintf(out, "%3d  %-24s  %7.3f  %4.2f  %-21s  %4d  %8.3f%s\n",
			n.Position, n.ConceptID, n.Mastery, n.Difficulty, bloom, n.EstimatedMins, n.Priority, mark)
		fmt.Fprintf(out, "     %s\n", strings.Join(n.Resources, " · "))
	}
	fmt.Fprintln(out, strings.Repeat("─", 96))
	fmt.Fprintf(out, "Estimated time: %d min\n", p.Duration())
}
