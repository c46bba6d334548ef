package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/contractengine/internal/config"
	"github.com/dshills/contractengine/internal/license"
	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/observe"
	"github.com/dshills/contractengine/internal/profile"
	"github.com/dshills/contractengine/internal/schema"
)

// newProvider is replaced in tests.
var newProvider = llm.NewProvider

// loadConfig reads and validates configuration. Invalid configuration is a
// bad-input failure.
func loadConfig(g *globalFlags, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, withCode(exitCodeBadInput, err)
	}
	if g.logLevel != "" {
		cfg.Log.Level = strings.ToLower(g.logLevel)
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, withCode(exitCodeBadInput, fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// buildEngine wires the configured provider, profile and observers. reg may
// be nil when no metrics are exported.
func buildEngine(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*llm.Engine, profile.Profile, error) {
	prof, err := profile.Load(cfg.Analysis.Profile)
	if err != nil {
		return nil, profile.Profile{}, withCode(exitCodeBadInput, err)
	}
	p, err := newProvider(llm.ProviderConfig{
		Name:    cfg.LLM.Provider,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, profile.Profile{}, withCode(exitCodeBadInput, err)
	}

	observers := []observe.Observer{observe.NewSlog(logger)}
	if reg != nil {
		metrics, err := observe.NewPrometheus(reg)
		if err != nil {
			return nil, profile.Profile{}, err
		}
		observers = append(observers, metrics)
	}

	engine := llm.NewEngine(p, llm.Options{
		Model:    cfg.LLM.Model,
		Profile:  prof,
		Timeout:  cfg.LLM.Timeout,
		Observer: observe.NewMulti(observers...),
		Logger:   logger,
	})
	return engine, prof, nil
}

func newVerifier(cfg *config.Config) (license.Verifier, error) {
	v, err := license.New(license.Config{
		Mode:      cfg.License.Mode,
		ProductID: cfg.License.ProductID,
		Endpoint:  cfg.License.Endpoint,
		Timeout:   cfg.License.Timeout,
	})
	if err != nil {
		return nil, withCode(exitCodeBadInput, err)
	}
	return v, nil
}

// checkLicense verifies key with the configured verifier.
func checkLicense(ctx context.Context, cfg *config.Config, key string) error {
	v, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	res, err := v.Verify(ctx, key)
	if err != nil {
		return withCode(exitCodeLicense, err)
	}
	if !res.Valid {
		return withCode(exitCodeLicense, errors.New(res.Message))
	}
	return nil
}

// analysisExit maps an Engine error to the CLI exit code.
func analysisExit(err error) error {
	var te *llm.TransportError
	var de *llm.DecodeError
	var ve *schema.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, llm.ErrEmptyContract):
		return withCode(exitCodeBadInput, err)
	case errors.As(err, &te):
		return withCode(exitCodeTransport, err)
	case errors.As(err, &de):
		return withCode(exitCodeBadOutput, err)
	case errors.As(err, &ve):
		return withCode(exitCodeValidation, err)
	default:
		return err
	}
}
