package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	hc "github.com/gohl7/corrector"
	"github.com/gohl7/corrector/codetable"
	"github.com/gohl7/corrector/evs"
	"github.com/gohl7/corrector/rules"
)

// config is the TOML configuration file shape. Flags override file
// values, file values override defaults.
type config struct {
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	MaxIterations int    `toml:"max_iterations"`
	Workers       int    `toml:"workers"`
	PollTimeout   string `toml:"poll_timeout"`

	// Tables lists extra code table JSON files loaded on top of the
	// embedded defaults.
	Tables []string `toml:"tables"`

	// DesignatorStrategy is "canonical" or "clear".
	DesignatorStrategy string `toml:"designator_strategy"`
}

func defaultConfig() *config {
	return &config{
		BaseURL:            evs.DefaultBaseURL,
		MaxIterations:      hc.DefaultMaxIterations,
		Workers:            4,
		DesignatorStrategy: string(rules.DesignatorCanonical),
	}
}

// loadConfig resolves the effective configuration from defaults, an
// optional TOML file and command line flags.
func loadConfig(cmd *cobra.Command) (*config, error) {
	cfg := defaultConfig()

	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if baseURL, _ := cmd.Root().PersistentFlags().GetString("base-url"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if apiKey, _ := cmd.Root().PersistentFlags().GetString("api-key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("HL7CORRECTOR_API_KEY")
	}

	switch rules.DesignatorStrategy(cfg.DesignatorStrategy) {
	case rules.DesignatorCanonical, rules.DesignatorClear:
	default:
		return nil, fmt.Errorf("unknown designator strategy %q", cfg.DesignatorStrategy)
	}

	return cfg, nil
}

// registry builds the code table registry: embedded defaults plus any
// configured extra files.
func (c *config) registry() *codetable.Registry {
	registry := codetable.NewRegistry()
	registry.LoadDefaults()
	for _, path := range c.Tables {
		registry.LoadFile(path)
	}
	return registry
}

// client builds the EVS client.
func (c *config) client() (*evs.Client, error) {
	opts := []evs.ClientOption{
		evs.WithBaseURL(c.BaseURL),
		evs.WithAPIKey(c.APIKey),
	}
	if c.PollTimeout != "" {
		d, err := time.ParseDuration(c.PollTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_timeout: %w", err)
		}
		opts = append(opts, evs.WithPollTimeout(d))
	}
	return evs.NewClient(opts...), nil
}

// controller builds the correction controller.
func (c *config) controller() (*hc.Controller, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	engine := rules.New(c.registry(),
		rules.WithDesignatorStrategy(rules.DesignatorStrategy(c.DesignatorStrategy)))
	return hc.New(client, engine, hc.WithMaxIterations(c.MaxIterations)), nil
}
