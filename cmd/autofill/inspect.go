package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	driver string
	port   int
	asJSON bool
}

// inspectCmd shows what a fill would do without writing anything
var inspectCmd = &cobra.Command{
	Use:   "inspect [url]",
	Short: "Show the fields of the current page and how they would be filled",
	Long: `Read the page open in the browser and print every fillable field with
the value autofill would propose, its source, its confidence and the
decision. Nothing is written to the page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFlags.driver, "driver", "", "Browser driver: playwright, rod or html")
	inspectCmd.Flags().IntVar(&inspectFlags.port, "port", 0, "Remote debugging port of a running browser")
	inspectCmd.Flags().BoolVar(&inspectFlags.asJSON, "json", false, "Print the page snapshot as JSON")
}

// fieldPlan is one row of the inspect output.
type fieldPlan struct {
	Field    types.FieldDescriptor `json:"field"`
	Match    types.MatchResult     `json:"match"`
	Decision types.Decision        `json:"decision"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if len(args) == 1 {
		cfg.Browser.StartURL = args[0]
	}
	if cmd.Flags().Changed("driver") {
		cfg.Browser.Driver = inspectFlags.driver
	}
	if cmd.Flags().Changed("port") {
		cfg.Browser.DebugPort = inspectFlags.port
	}

	page, err := browser.Open(cmd.Context(), cfg.BrowserOptions())
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer page.Close()

	scanned, err := extractor.ScanPage(cmd.Context(), page)
	if err != nil {
		return err
	}
	plans, tpl, err := plan(a, scanned)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Snapshot *browser.Snapshot `json:"snapshot"`
			Fields   []fieldPlan       `json:"fields"`
		}{scanned.Snapshot, plans})
	}

	snap := scanned.Snapshot
	fmt.Fprintf(out, "%s\n%s\n", snap.Title, snap.URL)
	if tpl != "" {
		fmt.Fprintf(out, "Template: %s\n", tpl)
	}

	if len(plans) == 0 {
		if msg, ok := extractor.Confirmation(snap, cfg.Session.ConfirmationPatterns); ok {
			fmt.Fprintf(out, "Confirmation page: %q\n", msg)
		} else {
			fmt.Fprintln(out, "No fillable fields.")
		}
		return nil
	}

	t := newTable("Field", "Kind", "Value", "Source", "Conf", "Decision")
	for _, p := range plans {
		value := p.Match.Value
		if len(p.Match.Values) > 0 {
			value = strings.Join(p.Match.Values, ", ")
		}
		t.Row(p.Field.RawLabel, string(p.Field.Kind), value, string(p.Match.Source),
			fmt.Sprintf("%.2f", p.Match.Confidence), string(p.Decision))
	}
	fmt.Fprintln(out, t.String())

	if btn, ok := extractor.ContinueControl(snap, cfg.Session.ContinueLabels); ok {
		fmt.Fprintf(out, "Continue: %q\n", btn.Label)
	} else {
		fmt.Fprintln(out, "Continue: none found")
	}
	return nil
}

// plan matches every field of the page the way a session would, applying
// the site template for its URL. It returns the template name, if any.
func plan(a *app, scanned *extractor.Page) ([]fieldPlan, string, error) {
	m, err := a.matcher()
	if err != nil {
		return nil, "", err
	}
	v, err := a.cfg.Validator()
	if err != nil {
		return nil, "", err
	}

	var tplName string
	if a.templates != nil {
		if tpl, ok := a.templates.ForURL(scanned.Snapshot.URL); ok {
			m = m.WithLabels(tpl.Labels())
			tplName = tpl.Name
		}
	}

	plans := make([]fieldPlan, 0, len(scanned.Fields))
	for _, f := range scanned.Fields {
		res := m.Match(f)
		plans = append(plans, fieldPlan{Field: f, Match: res, Decision: v.Decide(res)})
	}
	return plans, tplName, nil
}
