// Package archive keeps finished session summaries in a SQLite database so
// past sessions can be listed and the labels that keep needing the
// operator can be found.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/types"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown session id.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    start_url   TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    started_at  INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    pages       INTEGER NOT NULL DEFAULT 0,
    resolved    INTEGER NOT NULL DEFAULT 0,
    deferred    INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    summary     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
CREATE TABLE IF NOT EXISTS session_fields (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    label      TEXT NOT NULL,
    kind       TEXT NOT NULL,
    page       INTEGER NOT NULL,
    outcome    TEXT NOT NULL,
    source     TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_session_fields_label ON session_fields(label, outcome);
`

// Field outcomes stored per label.
const (
	OutcomeResolved = "resolved"
	OutcomeSoft     = "soft"
	OutcomeDeferred = "deferred"
	OutcomeFailed   = "failed"
)

// Archive is a session archive backed by one SQLite file.
type Archive struct {
	db *sql.DB
}

// Entry is one archived session, without its field lists.
type Entry struct {
	ID        string              `json:"id"`
	StartURL  string              `json:"start_url"`
	Status    types.SessionStatus `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Pages     int                 `json:"pages"`
	Resolved  int                 `json:"resolved"`
	Deferred  int                 `json:"deferred"`
	Failed    int                 `json:"failed"`
}

// LabelCount is how often a label ended up with the operator.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Open opens (creating if needed) the archive at path.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// one writer; WAL lets readers run alongside
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive schema: %w", err)
		}
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores sum, replacing an earlier copy of the same session.
func (a *Archive) Save(ctx context.Context, sum *session.Summary) error {
	if sum == nil || sum.SessionID == "" {
		return errors.New("archive: summary without session id")
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sum.SessionID); err != nil {
		return fmt.Errorf("replace session %s: %w", sum.SessionID, err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions
		(id, start_url, status, reason, started_at, duration_ms, pages, resolved, deferred, failed, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.StartURL, string(sum.Status), sum.Reason, sum.StartedAt.UnixMilli(),
		sum.Duration.Milliseconds(), len(sum.Pages), len(sum.Resolved), len(sum.Deferred), len(sum.Failed),
		string(data))
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sum.SessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_fields
		(session_id, label, kind, page, outcome, source, confidence) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fields: %w", err)
	}
	defer stmt.Close()

	soft := make(map[string]bool, len(sum.Soft))
	for _, o := range sum.Soft {
		soft[o.Label+"|"+string(o.Kind)] = true
	}
	insert := func(o types.FieldOutcome, outcome string) error {
		_, err := stmt.ExecContext(ctx, sum.SessionID, o.Label, string(o.Kind), o.Page, outcome, string(o.Source), o.Confidence)
		return err
	}
	for _, o := range sum.Resolved {
		outcome := OutcomeResolved
		if soft[o.Label+"|"+string(o.Kind)] {
			outcome = OutcomeSoft
		}
		if err := insert(o, outcome); err != nil {
			return fmt.Errorf("insert field %q: %w", o.Label, err)
		}
	}
	for _, o := range sum.Deferred {
		if err := insert(o, OutcomeDeferred); err != nil {
			return fmt.Errorf("insert field %q: %w", o.Label, err)
		}
	}
	for _, o := range sum.Failed {
		if err := insert(o, OutcomeFailed); err != nil {
			return fmt.Errorf("insert field %q: %w", o.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get returns the full summary of one session.
func (a *Archive) Get(ctx context.Context, id string) (*session.Summary, error) {
	var data string
	err := a.db.QueryRowContext(ctx, `SELECT summary FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", id, err)
	}
	var sum session.Summary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sum, nil
}

// List returns the most recent sessions first. limit <= 0 means all.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `SELECT id, start_url, status, reason, started_at, duration_ms,
		pages, resolved, deferred, failed FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			status     string
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &e.StartURL, &status, &e.Reason, &startedAt, &durationMs,
			&e.Pages, &e.Resolved, &e.Deferred, &e.Failed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.Status = types.SessionStatus(status)
		e.StartedAt = time.UnixMilli(startedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Unresolved ranks the labels most often left deferred or failed across
// all archived sessions.
func (a *Archive) Unresolved(ctx context.Context, limit int) ([]LabelCount, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `SELECT label, COUNT(*) AS n FROM session_fields
		WHERE outcome IN (?, ?) GROUP BY label ORDER BY n DESC, label LIMIT ?`,
		OutcomeDeferred, OutcomeFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("query unresolved labels: %w", err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// Delete removes sessions that started before cutoff and reports how many
// were removed.
func (a *Archive) Delete(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}
