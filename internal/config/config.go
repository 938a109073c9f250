// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// Engine tunes the control loop cadence and the rolling price window.
type Engine struct {
	CycleIntervalMs int  `yaml:"cycle_interval_ms" validate:"gte=0"`
	CycleTimeoutMs  int  `yaml:"cycle_timeout_ms" validate:"gte=0"`
	HistoryCapacity int  `yaml:"history_capacity" validate:"gte=0"`
	AutoStart       bool `yaml:"auto_start"`
}

// Market binds a trading pair to its oracle account, order-book market and token metadata.
type Market struct {
	Pair         string `yaml:"pair" validate:"required"`
	PriceAccount string `yaml:"price_account" validate:"required"`
	Market       string `yaml:"market" validate:"required"`
	BaseDecimals int    `yaml:"base_decimals" validate:"gte=0,lte=18"`
	// BaseTokenAccount is the SPL account holding the base token, debited by sells.
	BaseTokenAccount string `yaml:"base_token_account"`
	// VolumeSource is a DexScreener "chain/pairAddress" target used by the volume gate.
	VolumeSource string `yaml:"volume_source"`
}

// Oracle configures oracle polling.
type Oracle struct {
	PollsPerSecond float64 `yaml:"polls_per_second" validate:"gte=0"`
}

// DexScreener configures the HTTP volume source.
type DexScreener struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=0"`
}

// Risk encodes guard-rails for how much size the executor may take on.
type Risk struct {
	RiskFraction        float64 `yaml:"risk_fraction" validate:"gt=0,lte=1"`
	MaxPositionSize     float64 `yaml:"max_position_size" validate:"gt=0"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade" validate:"gte=0"`
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	RSIPeriod      int     `yaml:"rsi_period" validate:"gte=1"`
	RSIOverbought  float64 `yaml:"rsi_overbought" validate:"gte=0,lte=100,gtfield=RSIOversold"`
	RSIOversold    float64 `yaml:"rsi_oversold" validate:"gte=0,lte=100"`
	MinVolume      float64 `yaml:"min_volume" validate:"gte=0"`
	MAPeriod       int     `yaml:"ma_period" validate:"gte=1"`
	MinHistory     int     `yaml:"min_history" validate:"gte=0"`
	MinPriceChange float64 `yaml:"min_price_change" validate:"gte=0,lt=1"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string         `yaml:"mode" validate:"omitempty,oneof=momentum rsi trend ma trend_follow trend_follower"`
	Params StrategyParams `yaml:"params"`
}

// RetryPolicy mirrors retry.Policy in config units.
type RetryPolicy struct {
	MaxAttempts    int     `yaml:"max_attempts" validate:"gte=0"`
	InitialDelayMs int     `yaml:"initial_delay_ms" validate:"gte=0"`
	Multiplier     float64 `yaml:"multiplier" validate:"gte=0"`
	MaxDelayMs     int     `yaml:"max_delay_ms" validate:"gte=0"`
}

// InitialDelay converts the configured delay to a duration.
func (r RetryPolicy) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay converts the configured cap to a duration.
func (r RetryPolicy) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Retry holds one policy per call site.
type Retry struct {
	Oracle    RetryPolicy `yaml:"oracle"`
	Balance   RetryPolicy `yaml:"balance"`
	Volume    RetryPolicy `yaml:"volume"`
	Submit    RetryPolicy `yaml:"submit"`
	Reconnect RetryPolicy `yaml:"reconnect"`
}

// Monitor configures the periodic performance report and the outcome journal.
type Monitor struct {
	ReportIntervalSecs int    `yaml:"report_interval_secs" validate:"gte=0"`
	JournalPath        string `yaml:"journal_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App         `yaml:"app"`
	Engine      Engine      `yaml:"engine"`
	Solana      Solana      `yaml:"solana"`
	Relay       Relay       `yaml:"relay"`
	Wallet      Wallet      `yaml:"wallet"`
	Oracle      Oracle      `yaml:"oracle"`
	DexScreener DexScreener `yaml:"dexscreener"`
	Markets     []Market    `yaml:"markets" validate:"required,min=1,dive"`
	Risk        Risk        `yaml:"risk"`
	Strategy    Strategy    `yaml:"strategy"`
	Retry       Retry       `yaml:"retry"`
	Monitor     Monitor     `yaml:"monitor"`
}

// Load reads a YAML file from disk and hydrates a Config struct with defaults applied.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Config{Strategy: Strategy{Params: DefaultParams()}}
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.ApplyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Markets))
	for _, m := range c.Markets {
		if _, dup := seen[m.Pair]; dup {
			return fmt.Errorf("invalid config: duplicate market %q", m.Pair)
		}
		seen[m.Pair] = struct{}{}
	}
	return nil
}

// ValidateParams checks a strategy parameter bundle on its own.
func ValidateParams(p StrategyParams) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid strategy params: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero values with the bot's stock settings.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tipbot"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Engine.CycleIntervalMs == 0 {
		c.Engine.CycleIntervalMs = 1000
	}
	if c.Engine.CycleTimeoutMs == 0 {
		c.Engine.CycleTimeoutMs = 120_000
	}
	if c.Engine.HistoryCapacity == 0 {
		c.Engine.HistoryCapacity = 256
	}
	if c.Solana.Commitment == "" {
		c.Solana.Commitment = "confirmed"
	}
	if c.Relay.TipLamports == 0 {
		c.Relay.TipLamports = 10_000
	}
	if c.Relay.RequestsPerSecond == 0 {
		c.Relay.RequestsPerSecond = 1
	}
	if c.Relay.TimeoutMs == 0 {
		c.Relay.TimeoutMs = 8000
	}
	if c.DexScreener.BaseURL == "" {
		c.DexScreener.BaseURL = "https://api.dexscreener.com"
	}
	if c.DexScreener.TimeoutMs == 0 {
		c.DexScreener.TimeoutMs = 10_000
	}
	for i := range c.Markets {
		if c.Markets[i].BaseDecimals == 0 {
			c.Markets[i].BaseDecimals = 9
		}
	}
	if c.Risk.RiskFraction == 0 {
		c.Risk.RiskFraction = 0.01
	}
	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 1
	}
	if c.Strategy.Params == (StrategyParams{}) {
		c.Strategy.Params = DefaultParams()
	}
	if c.Strategy.Params.RSIPeriod == 0 {
		c.Strategy.Params.RSIPeriod = DefaultParams().RSIPeriod
	}
	if c.Strategy.Params.MAPeriod == 0 {
		c.Strategy.Params.MAPeriod = DefaultParams().MAPeriod
	}
	if c.Strategy.Mode == "" {
		c.Strategy.Mode = "trend"
	}
	defaultPolicy(&c.Retry.Oracle, 3, 500)
	defaultPolicy(&c.Retry.Balance, 3, 250)
	defaultPolicy(&c.Retry.Volume, 2, 500)
	defaultPolicy(&c.Retry.Submit, 3, 200)
	defaultPolicy(&c.Retry.Reconnect, 5, 1000)
	if c.Monitor.ReportIntervalSecs == 0 {
		c.Monitor.ReportIntervalSecs = 300
	}
}

func defaultPolicy(p *RetryPolicy, attempts, delayMs int) {
	if p.MaxAttempts == 0 && p.InitialDelayMs == 0 {
		p.MaxAttempts = attempts
		p.InitialDelayMs = delayMs
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2
	}
}

// DefaultParams returns the stock strategy parameters.
func DefaultParams() StrategyParams {
	return StrategyParams{
		RSIPeriod:      14,
		RSIOverbought:  70,
		RSIOversold:    30,
		MinVolume:      1_000_000,
		MAPeriod:       20,
		MinPriceChange: 0.02,
	}
}

// Update is the hot-swappable part of the configuration: strategy knobs and position sizing.
type Update struct {
	Params StrategyParams `yaml:",inline"`
	Risk   Risk           `yaml:",inline"`
}

// ParseUpdate decodes a YAML (or JSON) mapping onto the active params and risk.
// Keys absent from text keep their current values; an explicit zero is kept as zero.
func ParseUpdate(params StrategyParams, risk Risk, text string) (StrategyParams, Risk, error) {
	u := Update{Params: params, Risk: risk}
	if strings.TrimSpace(text) != "" {
		if err := yaml.Unmarshal([]byte(text), &u); err != nil {
			return params, risk, fmt.Errorf("decode update: %w", err)
		}
	}
	if err := ValidateParams(u.Params); err != nil {
		return params, risk, err
	}
	if err := validate.Struct(u.Risk); err != nil {
		return params, risk, fmt.Errorf("invalid risk: %w", err)
	}
	return u.Params, u.Risk, nil
}

// ParseParams decodes a YAML (or JSON) mapping of strategy knobs onto base.
func ParseParams(base StrategyParams, text string) (StrategyParams, error) {
	out := base
	if strings.TrimSpace(text) != "" {
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			return base, fmt.Errorf("decode strategy params: %w", err)
		}
	}
	if err := ValidateParams(out); err != nil {
		return base, err
	}
	return out, nil
}
