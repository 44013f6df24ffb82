package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/autofill/pkg/archive"
	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/confirm"
	"github.com/entrhq/autofill/pkg/learning"
	"github.com/entrhq/autofill/pkg/llm/tokenizer"
	"github.com/entrhq/autofill/pkg/metrics"
	"github.com/entrhq/autofill/pkg/report"
	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/suggest"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/entrhq/autofill/pkg/writer"
	"github.com/spf13/cobra"
)

var fillFlags struct {
	url       string
	driver    string
	port      int
	noAdvance bool
	noPrompt  bool
	suggest   bool
	timeout   time.Duration
	provider  config.ProviderFlags
}

// fillCmd fills the form open in the browser
var fillCmd = &cobra.Command{
	Use:   "fill [url]",
	Short: "Fill the form open in the browser",
	Long: `Fill the form open in the browser, page by page.

Fields matched with high confidence are filled, fields matched with medium
confidence are filled and flagged for review, and everything else is left
for you. In interactive mode autofill asks for those values as it goes and
remembers your answers.

With a url argument the form is opened first. The html driver takes a file
path instead and fills a static copy of the page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFill,
}

func init() {
	f := fillCmd.Flags()
	f.StringVar(&fillFlags.driver, "driver", "", "Browser driver: playwright, rod or html")
	f.IntVar(&fillFlags.port, "port", 0, "Remote debugging port of a running browser")
	f.BoolVar(&fillFlags.noAdvance, "no-advance", false, "Do not click Next; wait for you to move to the next page")
	f.BoolVar(&fillFlags.noPrompt, "no-prompt", false, "Never ask; leave unmatched fields for later")
	f.BoolVar(&fillFlags.suggest, "suggest", false, "Ask the LLM for suggested answers to unmatched fields")
	f.DurationVar(&fillFlags.timeout, "timeout", 0, "Stop the whole session after this long")
	f.StringVar(&fillFlags.provider.APIKey, "api-key", "", "OpenAI API key for suggestions (or set OPENAI_API_KEY)")
	f.StringVar(&fillFlags.provider.BaseURL, "base-url", "", "OpenAI-compatible API base URL")
	f.StringVar(&fillFlags.provider.Model, "model", "", "Model used for suggestions")
}

func runFill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		fillFlags.url = args[0]
	}
	applyFillFlags(cmd, a.cfg)

	if fillFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fillFlags.timeout)
		defer cancel()
	}

	console := report.NewConsole(cmd.OutOrStdout(), a.cfg.LogLevel())
	console.Header("AUTOFILL")

	page, err := browser.Open(ctx, a.cfg.BrowserOptions())
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer page.Close()

	var ask askFunc
	if a.cfg.Session.Interactive {
		ask = terminalAsk(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	sum, err := fill(ctx, a, page, console, ask)
	if err != nil {
		return err
	}

	console.Summary(sum)
	if sum.State == types.StateAbandoned && ctx.Err() != nil {
		return nil
	}
	if sum.Status != types.StatusCompleted {
		return fmt.Errorf("session %s: %s", sum.Status, sum.Reason)
	}
	return nil
}

func applyFillFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if fillFlags.url != "" {
		cfg.Browser.StartURL = fillFlags.url
	}
	if flags.Changed("driver") {
		cfg.Browser.Driver = fillFlags.driver
	}
	if flags.Changed("port") {
		cfg.Browser.DebugPort = fillFlags.port
	}
	if fillFlags.noAdvance {
		cfg.Session.AutoAdvance = false
	}
	if fillFlags.noPrompt {
		cfg.Session.Interactive = false
	}
	if fillFlags.suggest {
		cfg.Suggest.Enabled = true
	}
}

// fill runs one session on page and records its outcome. ask is nil when
// nobody is there to answer.
func fill(ctx context.Context, a *app, page browser.Page, console *report.Console, ask askFunc) (*session.Summary, error) {
	cfg := a.cfg
	m, err := a.matcher()
	if err != nil {
		return nil, err
	}
	v, err := cfg.Validator()
	if err != nil {
		return nil, err
	}
	scorer, err := cfg.Scorer()
	if err != nil {
		return nil, err
	}

	stats := metrics.New()
	emit := types.Fanout(console.Event, stats.Observe, logEvents(a))

	var prompts *prompter
	if ask != nil {
		prompts = newPrompter(ask)
		emit = types.Fanout(emit, prompts.Event)
	}

	opts := []session.Option{
		session.WithValidator(v),
		session.WithWriter(writer.New(
			writer.WithScorer(scorer),
			writer.WithFloor(cfg.Matching.MatchFloor),
			writer.WithSettleDelay(cfg.Timing.SettleDelay),
			writer.WithLogger(a.logger),
		)),
		session.WithGate(learning.New(a.store, a.profile,
			learning.WithSoftMatches(cfg.Matching.LearnSoft),
			learning.WithLogger(a.logger),
		)),
		session.WithEmitter(emit),
		session.WithLogger(a.logger),
	}
	if a.templates != nil {
		opts = append(opts, session.WithTemplates(a.templates))
	}
	if prompts != nil {
		mgr := confirm.NewManager(cfg.Timing.ConfirmationTimeout, emit)
		prompts.respond = mgr.Respond
		opts = append(opts, session.WithConfirmations(mgr))
	}
	if cfg.Suggest.Enabled {
		s, err := newSuggester(a)
		if err != nil {
			console.Warnf("Suggestions disabled: %v", err)
		} else {
			opts = append(opts, session.WithSuggester(s, a.profile))
		}
	}

	tracker, err := session.New(page, m, cfg.SessionSettings(), opts...)
	if err != nil {
		return nil, err
	}

	promptCtx, stopPrompts := context.WithCancel(ctx)
	promptsDone := make(chan struct{})
	if prompts != nil {
		go func() {
			defer close(promptsDone)
			prompts.Run(promptCtx)
		}()
	} else {
		close(promptsDone)
	}

	sum, runErr := tracker.Run(ctx)
	stopPrompts()
	<-promptsDone
	if runErr != nil {
		return nil, runErr
	}

	stats.RecordSession(sum.Status, sum.Duration)
	record(a, sum, stats, console)
	return sum, nil
}

func newSuggester(a *app) (*suggest.Suggester, error) {
	provider, err := a.cfg.BuildProvider(fillFlags.provider)
	if err != nil {
		return nil, err
	}
	opts := []suggest.Option{
		suggest.WithMaxPromptTokens(a.cfg.Suggest.MaxPromptTokens),
		suggest.WithLogger(a.logger),
	}
	if tok, err := tokenizer.New(); err == nil {
		opts = append(opts, suggest.WithTokenizer(tok))
	} else {
		a.logger.Warnf("Token counting unavailable, estimating: %v", err)
	}
	return suggest.New(provider, opts...), nil
}

// record writes the artifacts, the archive row and the metrics textfile.
// Failures are reported and do not change the session outcome.
func record(a *app, sum *session.Summary, stats *metrics.Metrics, console *report.Console) {
	cfg := a.cfg
	if cfg.Artifacts.Enabled {
		dir, err := report.NewArtifactWriter(cfg.Artifacts.OutputDir).WriteAll(sum)
		if err != nil {
			console.Warnf("Failed to write artifacts: %v", err)
		} else {
			console.Infof("Review: %s", dir)
		}
	}

	if cfg.ArchivePath != "" {
		if err := archiveSummary(cfg.ArchivePath, sum); err != nil {
			console.Warnf("Failed to archive session: %v", err)
		}
	}

	if err := stats.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		console.Warnf("%v", err)
	}
}

func archiveSummary(path string, sum *session.Summary) error {
	arc, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer arc.Close()
	// the session context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return arc.Save(ctx, sum)
}

// logEvents mirrors events into the run log.
func logEvents(a *app) types.EventEmitter {
	return func(e *types.FillEvent) {
		switch e.Type {
		case types.EventTypeFieldFailed, types.EventTypeError:
			a.logger.Warnf("%s: %v", e.Type, e.Error)
		case types.EventTypeStateChanged:
			a.logger.Debugf("state %v -> %s", e.Metadata["from"], e.State)
		default:
			if e.Field != nil {
				a.logger.Verbosef("%s: %s", e.Type, e.Field.Label)
			}
		}
	}
}
