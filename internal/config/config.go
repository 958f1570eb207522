// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	WebhookSecret string        `yaml:"webhook_secret"` // HS256 key; empty disables webhook auth
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables budget, lock and cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WorkerConfig struct {
	ID                string        `yaml:"id"`
	PoolSize          int           `yaml:"pool_size"`
	QueueSize         int           `yaml:"queue_size"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
	StuckAfter        time.Duration `yaml:"stuck_after"`
	StuckScanInterval time.Duration `yaml:"stuck_scan_interval"`
	ClaimRetries      int           `yaml:"claim_retries"`
	FinalizeRetries   int           `yaml:"finalize_retries"`
}

// DelayRange is a closed interval a random delay is drawn from.
type DelayRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

func (r DelayRange) IsZero() bool { return r.Min == 0 && r.Max == 0 }

type PacingConfig struct {
	Candidate DelayRange `yaml:"candidate"`
	Step      DelayRange `yaml:"step"`
	Search    DelayRange `yaml:"search"`
}

type BrowserConfig struct {
	Headless         bool          `yaml:"headless"`
	UserAgent        string        `yaml:"user_agent"`
	ChromePath       string        `yaml:"chrome_path"`
	ActionTimeout    time.Duration `yaml:"action_timeout"`
	PageTimeout      time.Duration `yaml:"page_timeout"`
	LoginTimeout     time.Duration `yaml:"login_timeout"`
	ActionsPerMinute int           `yaml:"actions_per_minute"`
	WindowWidth      int           `yaml:"window_width"`
	WindowHeight     int           `yaml:"window_height"`
}

type PlatformConfig struct {
	Name           string     `yaml:"name"`
	Disabled       bool       `yaml:"disabled"`
	Weight         float64    `yaml:"weight"`
	HardCap        int        `yaml:"hard_cap"`
	DailyCap       int        `yaml:"daily_cap"` // 0 disables the daily budget
	MaxTitles      int        `yaml:"max_titles"`
	MaxLocations   int        `yaml:"max_locations"`
	PerSearchCap   int        `yaml:"per_search_cap"`
	StepLimit      int        `yaml:"step_limit"`
	CandidateDelay DelayRange `yaml:"candidate_delay"` // overrides pacing.candidate
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type AlertsConfig struct {
	TelegramToken string  `yaml:"telegram_token"`
	AdminChatIDs  []int64 `yaml:"admin_chat_ids"`
}

type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Log       LogConfig        `yaml:"log"`
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Worker    WorkerConfig     `yaml:"worker"`
	Pacing    PacingConfig     `yaml:"pacing"`
	Browser   BrowserConfig    `yaml:"browser"`
	Platforms []PlatformConfig `yaml:"platforms"`
	Security  SecurityConfig   `yaml:"security"`
	Alerts    AlertsConfig     `yaml:"alerts"`
	OTel      OTelConfig       `yaml:"otel"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads .env (if present), the YAML file at path (if present), applies
// environment overrides and defaults, then validates.
func Load(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.HTTP.WebhookSecret = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Alerts.TelegramToken = v
	}
	if v := os.Getenv("WORKER_ID"); v != "" {
		cfg.Worker.ID = v
	}
}

// DefaultPlatforms mirrors the production split: 60% LinkedIn capped at 300,
// 40% Indeed capped at 200.
func DefaultPlatforms() []PlatformConfig {
	return []PlatformConfig{
		{Name: "LinkedIn", Weight: 0.6, HardCap: 300, MaxTitles: 3, MaxLocations: 2, PerSearchCap: 10, StepLimit: 5},
		{
			Name: "Indeed", Weight: 0.4, HardCap: 200, MaxTitles: 3, MaxLocations: 2, PerSearchCap: 15, StepLimit: 5,
			CandidateDelay: DelayRange{Min: 2 * time.Second, Max: 5 * time.Second},
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDuration(cfg.HTTP.ReadTimeout, 15*time.Second)
	// /process-queue runs a whole task synchronously
	cfg.HTTP.WriteTimeout = orDuration(cfg.HTTP.WriteTimeout, 35*time.Minute)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = orDuration(cfg.Redis.TTL, 10*time.Minute)

	w := &cfg.Worker
	if w.PoolSize <= 0 {
		w.PoolSize = 2
	}
	if w.QueueSize <= 0 {
		w.QueueSize = w.PoolSize * 4
	}
	w.PollInterval = orDuration(w.PollInterval, 60*time.Second)
	w.RunTimeout = orDuration(w.RunTimeout, 30*time.Minute)
	w.StuckAfter = orDuration(w.StuckAfter, 2*w.RunTimeout)
	w.StuckScanInterval = orDuration(w.StuckScanInterval, 5*time.Minute)
	if w.ClaimRetries <= 0 {
		w.ClaimRetries = 3
	}
	if w.FinalizeRetries <= 0 {
		w.FinalizeRetries = 3
	}

	cfg.Pacing.Candidate = orRange(cfg.Pacing.Candidate, 3*time.Second, 7*time.Second)
	cfg.Pacing.Step = orRange(cfg.Pacing.Step, 1500*time.Millisecond, 2500*time.Millisecond)
	cfg.Pacing.Search = orRange(cfg.Pacing.Search, 2500*time.Millisecond, 4*time.Second)

	b := &cfg.Browser
	if b.UserAgent == "" {
		b.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	b.ActionTimeout = orDuration(b.ActionTimeout, 10*time.Second)
	b.PageTimeout = orDuration(b.PageTimeout, 30*time.Second)
	b.LoginTimeout = orDuration(b.LoginTimeout, 45*time.Second)
	if b.ActionsPerMinute <= 0 {
		b.ActionsPerMinute = 60
	}
	if b.WindowWidth <= 0 || b.WindowHeight <= 0 {
		b.WindowWidth, b.WindowHeight = 1366, 900
	}

	if len(cfg.Platforms) == 0 {
		cfg.Platforms = DefaultPlatforms()
	}
	for i := range cfg.Platforms {
		p := &cfg.Platforms[i]
		if p.MaxTitles <= 0 {
			p.MaxTitles = 3
		}
		if p.MaxLocations <= 0 {
			p.MaxLocations = 2
		}
		if p.PerSearchCap <= 0 {
			p.PerSearchCap = 10
		}
		if p.StepLimit <= 0 {
			p.StepLimit = 5
		}
		if p.CandidateDelay.IsZero() {
			p.CandidateDelay = cfg.Pacing.Candidate
		}
	}

	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "jobsee-orchestrator"
	}
	if cfg.OTel.SampleRatio <= 0 {
		cfg.OTel.SampleRatio = 1
	}
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if n := len(cfg.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return errors.New("security.encryption_key must be 16, 24 or 32 bytes")
	}
	seen := map[string]bool{}
	for _, p := range cfg.Platforms {
		if p.Name == "" {
			return errors.New("platforms[].name is required")
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("platform %s configured twice", p.Name)
		}
		seen[key] = true
		if p.Weight < 0 || p.HardCap < 0 || p.DailyCap < 0 {
			return fmt.Errorf("platform %s: weight, hard_cap and daily_cap must be non-negative", p.Name)
		}
		if p.CandidateDelay.Max < p.CandidateDelay.Min {
			return fmt.Errorf("platform %s: candidate_delay.max < min", p.Name)
		}
	}
	for name, r := range map[string]DelayRange{"candidate": cfg.Pacing.Candidate, "step": cfg.Pacing.Step, "search": cfg.Pacing.Search} {
		if r.Max < r.Min {
			return fmt.Errorf("pacing.%s: max < min", name)
		}
	}
	return nil
}

// Platform returns the configuration of the named platform.
func (c *Config) Platform(name string) (PlatformConfig, bool) {
	for _, p := range c.Platforms {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PlatformConfig{}, false
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orRange(r DelayRange, min, max time.Duration) DelayRange {
	if r.IsZero() {
		return DelayRange{Min: min, Max: max}
	}
	return r
}
