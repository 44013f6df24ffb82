package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/entrhq/autofill/pkg/archive"
	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/templates"
	"github.com/spf13/cobra"
)

var doctorFlags struct {
	skipBrowser bool
}

// doctorCmd checks the setup
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration, the profile and the browser connection",
	Long: `Run every check a fill session depends on and report each one:
the config file, the profile, the learned answers, the templates, the
session archive, the suggestion provider and the browser connection.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFlags.skipBrowser, "skip-browser", false, "Do not connect to the browser")
}

// check is one doctor step. It returns a detail line on success.
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ config: %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}
	checks := doctorChecks(cfg, !doctorFlags.skipBrowser)
	if failed := runChecks(cmd.Context(), cmd.OutOrStdout(), checks); failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

func doctorChecks(cfg *config.Config, withBrowser bool) []check {
	checks := []check{
		{"profile", func(context.Context) (string, error) {
			p, err := profile.Load(cfg.ProfilePath)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d entries in %s", p.Len(), cfg.ProfilePath), nil
		}},
		{"learned answers", func(context.Context) (string, error) {
			s, err := learned.OpenFileStore(cfg.LearnedPath)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d answers in %s", s.Len(), s.Path()), nil
		}},
		{"templates", func(context.Context) (string, error) {
			if cfg.TemplatesDir == "" {
				return "disabled", nil
			}
			lib, err := templates.Open(cfg.TemplatesDir)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d templates", len(lib.Names())), nil
		}},
		{"archive", func(ctx context.Context) (string, error) {
			if cfg.ArchivePath == "" {
				return "disabled", nil
			}
			arc, err := archive.Open(cfg.ArchivePath)
			if err != nil {
				return "", err
			}
			defer arc.Close()
			entries, err := arc.List(ctx, 1)
			if err != nil {
				return "", err
			}
			if len(entries) == 0 {
				return "no sessions yet", nil
			}
			return "last session " + entries[0].StartedAt.Local().Format(time.RFC822), nil
		}},
		{"suggestions", func(context.Context) (string, error) {
			if !cfg.Suggest.Enabled {
				return "disabled", nil
			}
			p, err := cfg.BuildProvider(config.ProviderFlags{})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s at %s", p.GetModel(), p.GetBaseURL()), nil
		}},
	}
	if withBrowser {
		checks = append(checks, check{"browser", func(ctx context.Context) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			page, err := browser.Open(ctx, cfg.BrowserOptions())
			if err != nil {
				return "", err
			}
			defer page.Close()
			scanned, err := extractor.ScanPage(ctx, page)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %q, %d fields", cfg.Browser.Driver, scanned.Snapshot.Title, len(scanned.Fields)), nil
		}})
	}
	return checks
}

func runChecks(ctx context.Context, out io.Writer, checks []check) int {
	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s\n", c.name, detail)
	}
	return failed
}
