package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/entrhq/autofill/pkg/archive"
	"github.com/entrhq/autofill/pkg/report"
	"github.com/spf13/cobra"
)

var sessionsFlags struct {
	limit     int
	olderThan time.Duration
}

// sessionsCmd reviews archived sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Review past fill sessions",
	Long: `List and review archived fill sessions.

Subcommands:
  list       - List recent sessions
  show       - Print the review summary of one session
  unresolved - Questions you were asked most often
  prune      - Remove old sessions`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the review summary of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsUnresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "Questions left for you most often",
	Long: `Rank the question labels that most often ended deferred or failed.
They are good candidates for "autofill confirm" or a profile entry.`,
	RunE: runSessionsUnresolved,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old sessions",
	RunE:  runSessionsPrune,
}

func init() {
	sessionsCmd.PersistentFlags().IntVarP(&sessionsFlags.limit, "limit", "n", 20, "Maximum rows")
	sessionsPruneCmd.Flags().DurationVar(&sessionsFlags.olderThan, "older-than", 30*24*time.Hour, "Remove sessions started before this age")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsUnresolvedCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)
}

func openArchive() (*archive.Archive, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.ArchivePath == "" {
		return nil, fmt.Errorf("no archive_path configured")
	}
	return archive.Open(cfg.ArchivePath)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	arc, err := openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	entries, err := arc.List(cmd.Context(), sessionsFlags.limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}

	t := newTable("ID", "Started", "Status", "Pages", "Filled", "Deferred", "Failed", "Form")
	for _, e := range entries {
		t.Row(e.ID, e.StartedAt.Local().Format("2006-01-02 15:04"), string(e.Status),
			strconv.Itoa(e.Pages), strconv.Itoa(e.Resolved), strconv.Itoa(e.Deferred), strconv.Itoa(e.Failed), e.StartURL)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	arc, err := openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	sum, err := arc.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Markdown(sum))
	return nil
}

func runSessionsUnresolved(cmd *cobra.Command, _ []string) error {
	arc, err := openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	counts, err := arc.Unresolved(cmd.Context(), sessionsFlags.limit)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing left open in any recorded session.")
		return nil
	}
	t := newTable("Label", "Times")
	for _, c := range counts {
		t.Row(c.Label, strconv.Itoa(c.Count))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}

func runSessionsPrune(cmd *cobra.Command, _ []string) error {
	arc, err := openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	n, err := arc.Delete(cmd.Context(), time.Now().Add(-sessionsFlags.olderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ removed %d sessions\n", n)
	return nil
}
