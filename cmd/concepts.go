package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/concept"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "List the concept catalog in prerequisite order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.CatalogPath == "" {
			return fmt.Errorf("no concept catalog configured (use --catalog)")
		}
		cat, err := concept.LoadFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
		roots, _ := cmd.Flags().GetBool("roots")

		concepts := cat.TopologicalOrder()
		if roots {
			concepts = cat.Roots()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %-28s  %4s  %-10s  %4s  %s\n",
			"ID", "Name", "Diff", "Bloom", "Mins", "Prerequisites")
		fmt.Fprintln(out, strings.Repeat("─", 100))

		for _, c := range concepts {
			name := c.DisplayName()
			if len(name) > 28 {
				name = name[:25] + "..."
			}
			fmt.Fprintf(out, "%-24s  %-28s  %4.2f  %-10s  %4d  %s\n",
				c.ID, name, c.Difficulty, c.Bloom, c.EstimatedMins,
				strings.Join(c.Prerequisites, ", "))
		}

		fmt.Fprintf(out, "\n%d concepts\n", len(concepts))
		return nil
	},
}

func init() {
	conceptsCmd.Flags().Bool("roots", false, "Only list concepts without prerequisites")
}
