// Package config loads the engine configuration from YAML or JSON files
// with .env overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/pulse/arming"
	"github.com/rustyeddy/pulse/ledger"
	"github.com/rustyeddy/pulse/market"
)

// Config is the complete engine configuration.
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	AutoExec  AutoExecConfig  `json:"autoexec" yaml:"autoexec"`
	Signals   SignalsConfig   `json:"signals" yaml:"signals"`
	Feed      FeedConfig      `json:"feed" yaml:"feed"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type AccountConfig struct {
	StartingBalance decimal.Decimal `json:"starting_balance" yaml:"starting_balance"`
}

// SessionConfig seeds the desk: active symbol, order ticket and the
// arming state at start (ARMED is never restored).
type SessionConfig struct {
	Symbol     string          `json:"symbol" yaml:"symbol"`
	RiskAmount decimal.Decimal `json:"risk_amount" yaml:"risk_amount"`
	Stop       decimal.Decimal `json:"stop,omitempty" yaml:"stop,omitempty"`
	Target     decimal.Decimal `json:"target,omitempty" yaml:"target,omitempty"`
	Arming     string          `json:"arming" yaml:"arming"`
	DayRoll    string          `json:"day_roll" yaml:"day_roll"` // cron spec
	Timezone   string          `json:"timezone" yaml:"timezone"`
}

type ExecutionConfig struct {
	MaxSlippage   decimal.Decimal `json:"max_slippage" yaml:"max_slippage"`
	SlippageSeed  int64           `json:"slippage_seed,omitempty" yaml:"slippage_seed,omitempty"`
	TrailFraction decimal.Decimal `json:"trail_fraction" yaml:"trail_fraction"`
}

type AutoExecConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Timeframes []string `json:"timeframes,omitempty" yaml:"timeframes,omitempty"`
}

type SignalsConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Timeframes []string `json:"timeframes" yaml:"timeframes"`
	ATRPeriod  int      `json:"atr_period" yaml:"atr_period"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
}

// FeedConfig picks the tick source. With UseSimulation or an empty URL the
// synthetic walk is used; otherwise the websocket with synthetic fallback.
type FeedConfig struct {
	URL           string          `json:"url,omitempty" yaml:"url,omitempty"`
	UseSimulation bool            `json:"use_simulation" yaml:"use_simulation"`
	SyntheticBase decimal.Decimal `json:"synthetic_base" yaml:"synthetic_base"`
	Seed          int64           `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type StoreConfig struct {
	Type string `json:"type" yaml:"type"` // memory, file, sqlite, redis, postgres
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	Key  string `json:"key,omitempty" yaml:"key,omitempty"`
}

type ServerConfig struct {
	Addr            string `json:"addr" yaml:"addr"`
	ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Shutdown parses ShutdownTimeout, defaulting to five seconds.
func (s ServerConfig) Shutdown() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

type LogConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"` // json or console
}

// Location resolves Session.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Session.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Session.Timezone)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads envFile (when it exists) into the process environment
// and then applies the PULSE_* overrides. Variables already set in the
// environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv("PULSE_FEED_URL"); ok {
		c.Feed.URL = v
	}
	if v, ok := os.LookupEnv("PULSE_USE_SIMULATION"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PULSE_USE_SIMULATION: %w", err)
		}
		c.Feed.UseSimulation = b
	}
	if v, ok := os.LookupEnv("PULSE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("PULSE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv("PULSE_SYMBOL"); ok {
		c.Session.Symbol = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv("PULSE_REDIS_URL"); ok && v != "" {
		c.Store.Type, c.Store.URL = "redis", v
	}
	if v, ok := os.LookupEnv("PULSE_DATABASE_URL"); ok && v != "" {
		c.Store.Type, c.Store.URL = "postgres", v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Account.StartingBalance.IsPositive() {
		return fmt.Errorf("account.starting_balance must be positive")
	}
	if c.Session.Symbol == "" {
		return fmt.Errorf("session.symbol is required")
	}
	if c.Session.RiskAmount.IsNegative() || c.Session.Stop.IsNegative() || c.Session.Target.IsNegative() {
		return fmt.Errorf("session ticket values must not be negative")
	}
	if _, err := arming.ParseState(c.Session.Arming); err != nil {
		return fmt.Errorf("session.arming: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	if c.Execution.MaxSlippage.IsNegative() {
		return fmt.Errorf("execution.max_slippage must not be negative")
	}
	if f := c.Execution.TrailFraction; !f.IsPositive() || f.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("execution.trail_fraction must be between 0 and 1")
	}
	for _, tf := range append(append([]string{}, c.AutoExec.Timeframes...), c.Signals.Timeframes...) {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("timeframe %q: %w", tf, err)
		}
	}
	if c.Signals.Enabled && (c.Signals.ATRPeriod <= 0 || c.Signals.Multiplier <= 0) {
		return fmt.Errorf("signals.atr_period and signals.multiplier must be positive")
	}

	switch c.Journal.Type {
	case "none", "":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	switch c.Store.Type {
	case "memory", "":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for %s store", c.Store.Type)
		}
	case "redis", "postgres":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url required for %s store", c.Store.Type)
		}
	default:
		return fmt.Errorf("unknown store.type %q", c.Store.Type)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{StartingBalance: ledger.DefaultBalance},
		Session: SessionConfig{
			Symbol:     "TSLA",
			RiskAmount: decimal.NewFromInt(100),
			Arming:     string(arming.Disarmed),
			DayRoll:    "0 4 * * 1-5",
			Timezone:   "America/New_York",
		},
		Execution: ExecutionConfig{
			MaxSlippage:   decimal.RequireFromString("0.02"),
			TrailFraction: decimal.RequireFromString("0.005"),
		},
		AutoExec: AutoExecConfig{Enabled: false},
		Signals: SignalsConfig{
			Enabled:    true,
			Timeframes: []string{"1m", "5m"},
			ATRPeriod:  10,
			Multiplier: 1.0,
		},
		Feed: FeedConfig{
			UseSimulation: true,
			SyntheticBase: decimal.NewFromInt(150),
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./pulse-journal.db",
		},
		Store: StoreConfig{
			Type: "file",
			Path: "./pulse-account.json",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "5s",
		},
		Log: LogConfig{Level: "info", Encoding: "json"},
	}
}
