package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "reviewd",
	Short:   "AI-assisted performance review service",
	Version: version,
	Long: `reviewd aggregates an employee's OKRs, feedback, and documents,
indexes them for semantic retrieval, and generates draft performance
reviews with data-quality and confidence scoring.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(qualityCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(employeeCmd)
	rootCmd.AddCommand(documentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
