package learned

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/types"
)

const (
	fileVersion = 1

	// DefaultMaxBackups is how many previous versions of the file are kept.
	DefaultMaxBackups = 5

	backupStamp = "20060102T150405.000000000"
)

// fileFormat is the on-disk layout. LearnedQuestions is the older flat
// question-to-answer table; it is read once and rewritten as mappings.
type fileFormat struct {
	Version          int                             `json:"version"`
	Mappings         map[string]types.LearnedMapping `json:"mappings"`
	LearnedQuestions map[string]string               `json:"learned_questions,omitempty"`
}

// FileStore is a JSON file backed Store. Every Put flushes the whole table
// atomically (temp file + rename) after copying the previous file aside,
// so a crash loses at most the mapping being written.
type FileStore struct {
	*index
	path       string
	maxBackups int
	logger     *slog.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithMaxBackups sets how many backups are kept. Zero disables backups.
func WithMaxBackups(n int) FileStoreOption {
	return func(fs *FileStore) {
		fs.maxBackups = n
	}
}

// WithLogger sets the logger used for recoverable problems.
func WithLogger(l *slog.Logger) FileStoreOption {
	return func(fs *FileStore) {
		fs.logger = l
	}
}

// OpenFileStore loads path, creating its directory when needed. A missing
// file is an empty store.
func OpenFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	fs := &FileStore{
		index:      newIndex(),
		path:       path,
		maxBackups: DefaultMaxBackups,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("learned: init directory %s: %w", filepath.Dir(path), err)
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("learned: read %s: %w", path, err)
	}
	if err := fs.load(b); err != nil {
		return nil, fmt.Errorf("learned: parse %s: %w", path, err)
	}
	return fs, nil
}

func (fs *FileStore) load(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	var f fileFormat
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}

	labels := make([]string, 0, len(f.Mappings))
	for l := range f.Mappings {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, key := range labels {
		m := f.Mappings[key]
		if m.Label == "" {
			m.Label = key
		}
		m.Label = label.Normalize(m.Label)
		if err := validate(m); err != nil {
			fs.logger.Debug("learned: skipping invalid mapping", "label", key, "err", err)
			continue
		}
		if err := fs.insert(m); errors.Is(err, ErrDuplicateLabel) {
			// Two raw labels normalized to one key: newest wins.
			if prev := fs.mappings[m.Label]; m.UpdatedAt.After(prev.UpdatedAt) {
				fs.mappings[m.Label] = m
			}
			fs.logger.Debug("learned: merged duplicate label", "label", m.Label)
		}
	}

	questions := make([]string, 0, len(f.LearnedQuestions))
	for q := range f.LearnedQuestions {
		questions = append(questions, q)
	}
	sort.Strings(questions)
	for _, q := range questions {
		m := types.LearnedMapping{
			Label:      label.Normalize(q),
			Value:      strings.TrimSpace(f.LearnedQuestions[q]),
			Provenance: types.ProvenanceConfirmed,
		}
		if _, exists := fs.mappings[m.Label]; exists {
			continue
		}
		if _, err := fs.upsert(m); err != nil {
			fs.logger.Debug("learned: skipping legacy question", "question", q, "err", err)
		}
	}
	return nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

// Put stores m, replacing any mapping for the same label, and flushes the
// file before returning.
func (fs *FileStore) Put(_ context.Context, m types.LearnedMapping) (types.LearnedMapping, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, existed := fs.mappings[label.Normalize(m.Label)]
	stored, err := fs.upsert(m)
	if err != nil {
		return types.LearnedMapping{}, err
	}
	if err := fs.flush(); err != nil {
		// keep memory consistent with disk
		if existed {
			fs.mappings[stored.Label] = prev
		} else {
			delete(fs.mappings, stored.Label)
		}
		return types.LearnedMapping{}, err
	}
	return stored, nil
}

// Delete removes the mapping for l and flushes the file.
func (fs *FileStore) Delete(_ context.Context, l string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := label.Normalize(l)
	prev, ok := fs.mappings[key]
	if !ok {
		return ErrNotFound
	}
	delete(fs.mappings, key)
	if err := fs.flush(); err != nil {
		fs.mappings[key] = prev
		return err
	}
	return nil
}

// flush writes the table. Callers hold fs.mu.
func (fs *FileStore) flush() error {
	b, err := json.MarshalIndent(fileFormat{Version: fileVersion, Mappings: fs.mappings}, "", "  ")
	if err != nil {
		return fmt.Errorf("learned: encode: %w", err)
	}

	if err := fs.backup(); err != nil {
		fs.logger.Warn("learned: backup failed", "path", fs.path, "err", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("learned: write temp file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("learned: atomic rename %s: %w", fs.path, err)
	}
	return nil
}

func (fs *FileStore) backupPrefix() string {
	base := filepath.Base(fs.path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_backup_"
}

// backup copies the current file aside and prunes old copies.
func (fs *FileStore) backup() error {
	if fs.maxBackups <= 0 {
		return nil
	}
	b, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	name := fs.backupPrefix() + timeNow().UTC().Format(backupStamp) + filepath.Ext(fs.path)
	if err := os.WriteFile(filepath.Join(filepath.Dir(fs.path), name), b, 0o600); err != nil {
		return err
	}

	backups, err := fs.Backups()
	if err != nil {
		return err
	}
	for len(backups) > fs.maxBackups {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		fs.logger.Debug("learned: removed old backup", "path", backups[0])
		backups = backups[1:]
	}
	return nil
}

// Backups lists backup files, oldest first.
func (fs *FileStore) Backups() ([]string, error) {
	dir := filepath.Dir(fs.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("learned: list %s: %w", dir, err)
	}
	prefix := fs.backupPrefix()
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	// the timestamp suffix sorts chronologically
	sort.Strings(out)
	return out, nil
}
