package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/entrhq/autofill/pkg/learning"
	"github.com/spf13/cobra"
)

// mappingsCmd manages learned mappings
var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage learned answers",
	Long: `List and remove the answers autofill has learned.

Subcommands:
  list   - List learned answers
  forget - Remove a learned answer`,
	RunE: runMappingsList,
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned answers",
	RunE:  runMappingsList,
}

var mappingsForgetCmd = &cobra.Command{
	Use:   "forget <label>",
	Short: "Remove a learned answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingsForget,
}

func init() {
	mappingsCmd.AddCommand(mappingsListCmd)
	mappingsCmd.AddCommand(mappingsForgetCmd)
}

func runMappingsList(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	mappings := a.store.List()
	if len(mappings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No learned answers yet.")
		return nil
	}

	t := newTable("Label", "Answer", "Provenance", "Rev", "Updated")
	for _, m := range mappings {
		t.Row(m.Label, m.Target(), string(m.Provenance), strconv.Itoa(m.Revision), m.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	fmt.Fprintf(cmd.OutOrStdout(), "%d learned answers in %s\n", len(mappings), a.store.Path())
	return nil
}

func runMappingsForget(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	gate := learning.New(a.store, a.profile, learning.WithLogger(a.logger))
	if err := gate.Forget(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ forgot %q\n", args[0])
	return nil
}

func newTable(headers ...string) *table.Table {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB3BA")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}
