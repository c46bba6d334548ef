package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/dshills/contractengine/internal/license"
	"github.com/dshills/contractengine/internal/profile"
)

// Validate checks the configuration for errors and returns the first one
// found.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server address: %v", err)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max_body_bytes must be positive")
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "google":
	default:
		return fmt.Errorf("unknown llm provider %q (want openai, anthropic or google)", c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm timeout cannot be negative")
	}
	if budget := c.LLM.AnalysisBudget(); budget > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= budget {
		return fmt.Errorf("server write_timeout %s must exceed %s (twice llm timeout)", c.Server.WriteTimeout, budget)
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid llm base_url %q", c.LLM.BaseURL)
		}
	}

	if _, err := profile.Load(c.Analysis.Profile); err != nil {
		return err
	}

	switch c.License.Mode {
	case license.ModeOff, license.ModeDev:
	case license.ModeGumroad:
		if c.License.ProductID == "" {
			return errors.New("license product_id cannot be empty when mode is gumroad")
		}
	default:
		return fmt.Errorf("unknown license mode %q (want off, dev or gumroad)", c.License.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
