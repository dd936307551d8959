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

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | noop
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // update handling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	// RateLimitPerMinute caps photo submissions per user; 0 disables it.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type ProcessorConfig struct {
	URL             string        `yaml:"url"`
	APIKeyHeader    string        `yaml:"api_key_header"` // e.g. Authorization or x-api-key
	APIKeyValue     string        `yaml:"api_key_value"`
	FileField       string        `yaml:"file_field"`
	JobIDField      string        `yaml:"job_id_field"`
	CallbackField   string        `yaml:"callback_field"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxErrorDetail  int           `yaml:"max_error_detail"`
	MaxConcurrent   int           `yaml:"max_concurrent"` // in-flight dispatches
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

type CallbackConfig struct {
	PublicBaseURL string   `yaml:"public_base_url"`
	Path          string   `yaml:"path"`
	EmbedIDInURL  bool     `yaml:"embed_id_in_url"`
	JobIDFields   []string `yaml:"job_id_fields"`
	// ResultURLField is tried before the built-in url aliases.
	ResultURLField string   `yaml:"result_url_field"`
	ResultURLs     []string `yaml:"result_url_fields"`
	Base64Fields   []string `yaml:"base64_fields"`
}

type JobsConfig struct {
	MaxPendingAge  time.Duration `yaml:"max_pending_age"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SweepBatch     int           `yaml:"sweep_batch"`
	RefundOnExpiry bool          `yaml:"refund_on_expiry"`
	DebitAmount    int64         `yaml:"debit_amount"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // memory | redis | postgres
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Processor ProcessorConfig `yaml:"processor"`
	Callback  CallbackConfig  `yaml:"callback"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`
	Events    EventsConfig    `yaml:"events"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when env carries everything),
// loads a .env file if present, applies env overrides and defaults, then validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; a missing file is not an error.
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

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv maps the deployment env vars onto the config, overriding yaml.
func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Bot.Token, "BOT_TOKEN")
	set(&cfg.Callback.PublicBaseURL, "PUBLIC_BASE_URL")
	set(&cfg.Processor.URL, "PROCESSOR_URL")
	set(&cfg.Processor.APIKeyHeader, "API_KEY_HEADER")
	set(&cfg.Processor.APIKeyValue, "API_KEY_VALUE")
	set(&cfg.Processor.FileField, "FILE_FIELD_NAME")
	set(&cfg.Callback.ResultURLField, "WEBHOOK_RESULT_FIELD_URL")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	set(&cfg.Events.AMQPURL, "AMQP_URL")
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 10 << 20 // webhook payloads can carry base64 images
	}
	if cfg.Processor.FileField == "" {
		cfg.Processor.FileField = "photo"
	}
	if cfg.Processor.JobIDField == "" {
		cfg.Processor.JobIDField = "id_gen"
	}
	if cfg.Processor.CallbackField == "" {
		cfg.Processor.CallbackField = "webhook"
	}
	if cfg.Processor.Timeout <= 0 {
		cfg.Processor.Timeout = 60 * time.Second
	}
	if cfg.Processor.DownloadTimeout <= 0 {
		cfg.Processor.DownloadTimeout = 30 * time.Second
	}
	if cfg.Processor.MaxConcurrent <= 0 {
		cfg.Processor.MaxConcurrent = 4
	}
	if cfg.Processor.MaxErrorDetail <= 0 {
		cfg.Processor.MaxErrorDetail = 300
	}
	if cfg.Callback.Path == "" {
		cfg.Callback.Path = "/webhook/process"
	}
	if !strings.HasPrefix(cfg.Callback.Path, "/") {
		cfg.Callback.Path = "/" + cfg.Callback.Path
	}
	cfg.Callback.PublicBaseURL = strings.TrimRight(cfg.Callback.PublicBaseURL, "/")
	if len(cfg.Callback.JobIDFields) == 0 {
		cfg.Callback.JobIDFields = []string{"id_gen", "id", "job_id"}
	}
	if cfg.Callback.ResultURLField == "" {
		cfg.Callback.ResultURLField = "url"
	}
	if len(cfg.Callback.ResultURLs) == 0 {
		cfg.Callback.ResultURLs = []string{"url", "image_url", "result_url"}
	}
	if len(cfg.Callback.Base64Fields) == 0 {
		cfg.Callback.Base64Fields = []string{"base64", "image_base64"}
	}
	if cfg.Jobs.MaxPendingAge <= 0 {
		cfg.Jobs.MaxPendingAge = 24 * time.Hour
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = 10 * time.Minute
	}
	if cfg.Jobs.SweepBatch <= 0 {
		cfg.Jobs.SweepBatch = 200
	}
	if cfg.Jobs.DebitAmount <= 0 {
		cfg.Jobs.DebitAmount = 1
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "photobridge"
	}
	if cfg.Events.Queue == "" {
		cfg.Events.Queue = "photobridge.job_events"
	}
}

// ResultURLFields returns the configured result field followed by the built-in
// aliases, without duplicates.
func (c CallbackConfig) ResultURLFields() []string {
	out := make([]string, 0, len(c.ResultURLs)+1)
	seen := map[string]struct{}{}
	for _, f := range append([]string{c.ResultURLField}, c.ResultURLs...) {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// CallbackURL is the address handed to the processor for a job.
func (c CallbackConfig) CallbackURL() string {
	return c.PublicBaseURL + c.Path
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	if c.Bot.Token == "" && c.Bot.Mode != "noop" {
		return errors.New("bot.token is required")
	}
	if c.Callback.PublicBaseURL == "" {
		return errors.New("callback.public_base_url is required")
	}
	if c.Processor.URL == "" {
		return errors.New("processor.url is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for store.backend=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for store.backend=postgres")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}
