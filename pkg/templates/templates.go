// Package templates keeps per-site field mappings. A template whose site
// pattern matches the page URL teaches the matcher that site's wording for
// profile keys.
package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for unknown template names.
var ErrNotFound = errors.New("templates: not found")

// Template maps a site's field labels to profile keys.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	SiteURL     string `yaml:"site_url" json:"site_url"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// FieldMappings maps a label as the site words it to a profile key,
	// optionally qualified by group ("personal_info.email").
	FieldMappings map[string]string `yaml:"field_mappings" json:"field_mappings"`

	CreatedAt time.Time  `yaml:"created_at" json:"created_at"`
	LastUsed  *time.Time `yaml:"last_used,omitempty" json:"last_used,omitempty"`
	UseCount  int        `yaml:"use_count" json:"use_count"`
}

// Labels returns the mappings keyed by normalized label.
func (t *Template) Labels() map[string]string {
	out := make(map[string]string, len(t.FieldMappings))
	for l, key := range t.FieldMappings {
		if n := label.Normalize(l); n != "" && key != "" {
			out[n] = key
		}
	}
	return out
}

// Matches reports whether the template applies to url. Patterns with glob
// metacharacters are matched against the URL with and without its scheme;
// plain patterns match as substrings.
func (t *Template) Matches(url string) bool {
	if t.SiteURL == "" || url == "" {
		return false
	}
	if !strings.ContainsAny(t.SiteURL, "*?[{") {
		return strings.Contains(url, t.SiteURL)
	}
	g, err := glob.Compile(t.SiteURL)
	if err != nil {
		return false
	}
	bare := url
	if i := strings.Index(bare, "://"); i >= 0 {
		bare = bare[i+3:]
	}
	return g.Match(url) || g.Match(bare)
}

// Defaults are installed into an empty library.
func Defaults() []Template {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Template{
		{
			Name:        "google_forms",
			SiteURL:     "docs.google.com/forms",
			Description: "Standard Google Forms template",
			FieldMappings: map[string]string{
				"Name":    "personal_info.full_name",
				"Email":   "personal_info.email",
				"Phone":   "personal_info.phone",
				"Address": "personal_info.address",
			},
			CreatedAt: created,
		},
		{
			Name:        "job_application",
			SiteURL:     "*careers*",
			Description: "Common job application form fields",
			FieldMappings: map[string]string{
				"Full Name":           "personal_info.full_name",
				"Email Address":       "personal_info.email",
				"Phone Number":        "personal_info.phone",
				"Current Position":    "professional.job_title",
				"Current Company":     "professional.company",
				"Years of Experience": "professional.experience",
				"LinkedIn":            "professional.linkedin",
			},
			CreatedAt: created,
		},
	}
}

// Library is a directory of template files, one YAML file per template.
type Library struct {
	dir       string
	mu        sync.Mutex
	templates map[string]*Template
	files     map[string]string // file each template was loaded from
}

// Open loads every *.yaml, *.yml and *.json file in dir. A missing
// directory is an empty library.
func Open(dir string) (*Library, error) {
	lib := &Library{dir: dir, templates: make(map[string]*Template), files: make(map[string]string)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("templates: read %s: %w", dir, err)
	}

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}
		t, err := readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		lib.templates[t.Name] = t
		lib.files[t.Name] = filepath.Join(dir, e.Name())
	}
	return lib, nil
}

func readFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("templates: decode %s: %w", path, err)
	}
	if t.SiteURL != "" && strings.ContainsAny(t.SiteURL, "*?[{") {
		if _, err := glob.Compile(t.SiteURL); err != nil {
			return nil, fmt.Errorf("templates: %s: invalid site_url pattern %q: %w", path, t.SiteURL, err)
		}
	}
	return &t, nil
}

// InstallDefaults writes each default template the library lacks.
func (l *Library) InstallDefaults() error {
	for _, t := range Defaults() {
		l.mu.Lock()
		_, ok := l.templates[t.Name]
		l.mu.Unlock()
		if ok {
			continue
		}
		if err := l.Save(t); err != nil {
			return err
		}
	}
	return nil
}

// Names lists template names, sorted.
func (l *Library) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.templates))
	for n := range l.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the named template.
func (l *Library) Get(name string) (Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return *t, nil
}

// ForURL returns the template for url. When several match, the longest
// site pattern wins, then the smaller name.
func (l *Library) ForURL(url string) (Template, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var best *Template
	for _, t := range l.templates {
		if !t.Matches(url) {
			continue
		}
		if best == nil || len(t.SiteURL) > len(best.SiteURL) ||
			(len(t.SiteURL) == len(best.SiteURL) && t.Name < best.Name) {
			best = t
		}
	}
	if best == nil {
		return Template{}, false
	}
	return *best, true
}

// Save creates or replaces a template file.
func (l *Library) Save(t Template) error {
	if t.Name == "" || strings.ContainsAny(t.Name, `/\`) {
		return fmt.Errorf("templates: invalid name %q", t.Name)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(&t); err != nil {
		return err
	}
	l.templates[t.Name] = &t
	return nil
}

// MarkUsed bumps the use count and last-used time of a template.
func (l *Library) MarkUsed(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.templates[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	updated := *t
	now := time.Now().UTC()
	updated.LastUsed = &now
	updated.UseCount++
	if err := l.write(&updated); err != nil {
		return err
	}
	l.templates[name] = &updated
	return nil
}

// Delete removes a template and its file.
func (l *Library) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.templates[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	for _, p := range []string{l.files[name], l.path(name)} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("templates: delete %s: %w", name, err)
		}
	}
	delete(l.templates, name)
	delete(l.files, name)
	return nil
}

// Import copies a template file into the library.
func (l *Library) Import(path string) (Template, error) {
	t, err := readFile(path)
	if err != nil {
		return Template{}, err
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := l.Save(*t); err != nil {
		return Template{}, err
	}
	return *t, nil
}

func (l *Library) path(name string) string {
	return filepath.Join(l.dir, name+".yaml")
}

// write stores t atomically. Callers hold l.mu.
func (l *Library) write(t *Template) error {
	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("templates: create directory: %w", err)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("templates: encode %s: %w", t.Name, err)
	}
	path := l.path(t.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("templates: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("templates: rename %s: %w", path, err)
	}
	// a template imported from JSON moves to YAML on its first write
	if old := l.files[t.Name]; old != "" && old != path {
		os.Remove(old)
	}
	l.files[t.Name] = path
	return nil
}
