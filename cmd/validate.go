package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/question"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, concept catalog and question bank",
	Long: `Load the configuration, concept catalog and question bank and report
every problem found. Nothing is written to the database.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		reportProblems(out, "config", err)
		return errors.New("validation failed")
	}
	fmt.Fprintln(out, "config: ok")

	failed := false
	var cat *concept.Catalog
	if cfg.CatalogPath == "" {
		fmt.Fprintln(out, "catalog: not configured")
		failed = true
	} else if cat, err = concept.LoadFile(cfg.CatalogPath); err != nil {
		reportProblems(out, "catalog", err)
		failed = true
	} else {
		fmt.Fprintf(out, "catalog: %d concepts, %d roots\n", cat.Len(), len(cat.Roots()))
	}

	var bank *question.Bank
	if cfg.BankPath == "" {
		fmt.Fprintln(out, "bank: not configured")
	} else if bank, err = question.LoadFile(cfg.BankPath); err != nil {
		reportProblems(out, "bank", err)
		failed = true
	} else {
		sum := bank.Summary()
		fmt.Fprintf(out, "bank: %d questions", sum.Total)
		for _, lvl := range difficulty.AllLevels() {
			fmt.Fprintf(out, ", %d %s", sum.ByDifficulty[lvl].Count, lvl)
		}
		fmt.Fprintln(out)
	}

	if cat != nil && bank != nil {
		var unknown, uncovered []string
		for _, id := range bank.Concepts() {
			if !cat.Has(id) {
				unknown = append(unknown, id)
			}
		}
		for _, id := range cat.IDs() {
			if !bank.HasConcept(id) {
				uncovered = append(uncovered, id)
			}
		}
		sort.Strings(unknown)
		sort.Strings(uncovered)
		for _, id := range unknown {
			fmt.Fprintf(out, "  - bank concept %q is not in the catalog\n", id)
		}
		if len(unknown) > 0 {
			failed = true
		}
		for _, id := range uncovered {
			fmt.Fprintf(out, "  note: concept %q has no questions\n", id)
		}
	}

	if failed {
		return errors.New("validation failed")
	}
	fmt.Fprintln(out, "all checks passed")
	return nil
}

func reportProblems(out io.Writer, what string, err error) {
	var cfgErr *apperr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		fmt.Fprintf(out, "%s: %v\n", what, err)
		return
	}
	fmt.Fprintf(out, "%s: %d problem(s)\n", what, len(cfgErr.Problems))
	for _, p := range cfgErr.Problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
}
