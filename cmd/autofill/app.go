package main

import (
	"fmt"
	"path/filepath"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/templates"
)

// app holds what every command loads from the configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	profile   *profile.Profile
	store     *learned.FileStore
	templates *templates.Library
}

// loadConfig reads the config file and applies --verbosity.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbosity != "" {
		cfg.Logging.Verbosity = verbosity
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logging.SetLevel(cfg.LogLevel())
	if home, err := config.Home(); err == nil {
		logging.SetDirectory(filepath.Join(home, "logs"))
	}
	return cfg, nil
}

// loadApp loads the configuration, the profile and the learned mappings.
// The template library is optional: a broken templates directory is
// logged and skipped.
func loadApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.MustLogger("cli")

	p, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	store, err := learned.OpenFileStore(cfg.LearnedPath, learned.WithLogger(logger.Slog()))
	if err != nil {
		return nil, fmt.Errorf("failed to open learned mappings: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, profile: p, store: store}
	if cfg.TemplatesDir != "" {
		lib, err := templates.Open(cfg.TemplatesDir)
		if err != nil {
			logger.Warnf("Templates unavailable: %v", err)
		} else {
			a.templates = lib
		}
	}
	logger.Infof("Loaded profile %s (%d entries), %d learned mappings", cfg.ProfilePath, p.Len(), store.Len())
	return a, nil
}

// matcher builds the matcher the configuration describes.
func (a *app) matcher() (*matcher.Matcher, error) {
	scorer, err := a.cfg.Scorer()
	if err != nil {
		return nil, err
	}
	return matcher.New(a.profile, a.store,
		matcher.WithScorer(scorer),
		matcher.WithFloor(a.cfg.Matching.MatchFloor),
		matcher.WithAliases(a.cfg.Matching.Aliases),
	), nil
}

func (a *app) close() {
	a.logger.Close()
}
