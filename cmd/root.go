package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Adaptive learning engine",
	Long: `tutor tracks each learner's mastery of a concept graph, adapts quiz
difficulty to their recent answers and builds prerequisite-respecting
study paths.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides TUTOR_CONFIG env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TUTOR_DB env var)")
	rootCmd.PersistentFlags().String("catalog", "", "Path to YAML concept catalog (overrides TUTOR_CATALOG env var)")
	rootCmd.PersistentFlags().String("bank", "", "Path to question bank, .json or .csv (overrides TUTOR_BANK env var)")
	rootCmd.PersistentFlags().String("log-mode", "", "Log mode: dev, prod or quiet")

	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
}
