// Package main is the autofill command line: fill a web form from a
// profile, teach it answers, and review past sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	configPath string
	verbosity  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "autofill",
	Short: "Fill multi-page web forms from your profile",
	Long: `autofill reads the form open in your browser, fills every field it can
match to your profile with enough confidence, asks you about the rest, and
remembers your answers for next time.

Attach to a running Chrome started with --remote-debugging-port=9222, or let
autofill launch one.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.autofill/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "", "Output level: quiet, normal, verbose or debug")

	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
