package main

import (
	"fmt"

	"github.com/entrhq/autofill/pkg/learning"
	"github.com/spf13/cobra"
)

var confirmFlags struct {
	label string
	value string
}

// confirmCmd teaches autofill the answer to a question
var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Teach autofill the answer to a form question",
	Long: `Store a confirmed answer for a question label. The next session that
meets the label fills it with the answer, ahead of any fuzzy match.

When the answer equals a profile value the mapping points at that profile
entry, so it follows later profile edits.`,
	Example: `  autofill confirm --label "Favourite pet" --value cat
  autofill confirm --label "Applicant e-mail" --value me@example.com`,
	RunE: runConfirm,
}

func init() {
	confirmCmd.Flags().StringVarP(&confirmFlags.label, "label", "l", "", "Question label as the form shows it")
	confirmCmd.Flags().StringVarP(&confirmFlags.value, "value", "v", "", "Answer to fill")
	_ = confirmCmd.MarkFlagRequired("label")
	_ = confirmCmd.MarkFlagRequired("value")
}

func runConfirm(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	gate := learning.New(a.store, a.profile, learning.WithLogger(a.logger))
	m, err := gate.ConfirmOutOfBand(cmd.Context(), confirmFlags.label, confirmFlags.value)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %q → %s (revision %d)\n", m.Label, m.Target(), m.Revision)
	return nil
}
