// Package config loads and validates service configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ruletree/ruletree/internal/compile"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15s". Bare numbers mean seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Store     StoreConfig      `yaml:"store"`
	Cache     CacheConfig      `yaml:"cache"`
	Jobs      JobsConfig       `yaml:"jobs"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Compile   CompileConfig    `yaml:"compile"`
	Schema    []SchemaField    `yaml:"schema" validate:"dive"`
	Operators []map[string]any `yaml:"operators"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds JWT settings. An empty signing key disables auth.
type AuthConfig struct {
	SigningKey string   `yaml:"signing_key"`
	Issuer     string   `yaml:"issuer"`
	TokenTTL   Duration `yaml:"token_ttl"`

	// RequireRoles gates the rule-set routes by the token's role
	// claims (admin, editor, viewer). Off admits every valid token.
	RequireRoles bool `yaml:"require_roles"`
}

// Enabled reports whether bearer auth should be enforced.
func (a AuthConfig) Enabled() bool {
	return a.SigningKey != ""
}

// StoreConfig selects and configures the rule-set store backend.
type StoreConfig struct {
	Driver       string `yaml:"driver" validate:"required,oneof=postgres sqlite memory"`
	DSN          string `yaml:"dsn" validate:"required_unless=Driver memory"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"min=0"`
}

// CacheConfig selects and configures the compile cache backend.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Backend  string   `yaml:"backend" validate:"required,oneof=memory redis"`
	RedisURL string   `yaml:"redis_url" validate:"required_if=Backend redis"`
	TTL      Duration `yaml:"ttl"`
}

// JobsConfig configures the background worker.
type JobsConfig struct {
	Enabled       bool     `yaml:"enabled"`
	RedisURL      string   `yaml:"redis_url" validate:"required_if=Enabled true"`
	Concurrency   int      `yaml:"concurrency" validate:"min=0"`
	PurgeAfter    Duration `yaml:"purge_after"`
	PurgeSchedule string   `yaml:"purge_schedule"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"required,oneof=json text"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CompileConfig carries the validator and compiler knobs.
type CompileConfig struct {
	MaxNesting         int  `yaml:"max_nesting" validate:"min=0"`
	ReverseOperators   bool `yaml:"reverse_operators"`
	CanLeaveEmptyGroup bool `yaml:"can_leave_empty_group"`
}

// ValidateConfig converts the section into validator settings.
func (c CompileConfig) ValidateConfig() validate.Config {
	return validate.Config{
		MaxNesting:         c.MaxNesting,
		CanLeaveEmptyGroup: c.CanLeaveEmptyGroup,
	}
}

// Options converts the section into compiler options for a schema.
func (c CompileConfig) Options(sc *schema.Schema) compile.Options {
	return compile.Options{
		Schema:             sc,
		MaxNesting:         c.MaxNesting,
		ReverseOperators:   c.ReverseOperators,
		CanLeaveEmptyGroup: c.CanLeaveEmptyGroup,
	}
}

// SchemaField is one field catalog entry.
type SchemaField struct {
	Name  string `yaml:"name" validate:"required"`
	Type  string `yaml:"type" validate:"required,oneof=text number boolean date time datetime"`
	Label string `yaml:"label"`
}

// BuildSchema converts the configured field catalog into a schema.
// Returns nil when no fields are configured, which disables
// schema-dependent checks.
func (c *Config) BuildSchema() (*schema.Schema, error) {
	if len(c.Schema) == 0 {
		return nil, nil
	}
	fields := make([]schema.Field, 0, len(c.Schema))
	for _, f := range c.Schema {
		t, err := tree.ParseTypeTag(f.Type)
		if err != nil {
			return nil, fmt.Errorf("schema field %s: %w", f.Name, err)
		}
		fields = append(fields, schema.Field{Name: f.Name, Type: t, Label: f.Label})
	}
	return schema.New(fields...)
}

// Default returns a Config with sensible defaults: in-memory store and
// cache, no auth, no jobs, port 8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Auth: AuthConfig{
			TokenTTL: Duration(24 * time.Hour),
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     Duration(5 * time.Minute),
		},
		Jobs: JobsConfig{
			Concurrency:   10,
			PurgeAfter:    Duration(30 * 24 * time.Hour),
			PurgeSchedule: "@daily",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Compile: CompileConfig{
			MaxNesting: validate.DefaultMaxNesting,
		},
	}
}

// Load reads configuration from an optional YAML file, applies
// environment overrides, and validates the result. Unknown YAML keys
// are rejected. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
// Recognized variables:
//   - RULETREE_ADDR: server listen address
//   - RULETREE_STORE_DRIVER, RULETREE_STORE_DSN
//   - RULETREE_CACHE_REDIS_URL
//   - RULETREE_JOBS_REDIS_URL
//   - RULETREE_AUTH_SIGNING_KEY
//   - RULETREE_LOG_LEVEL, RULETREE_LOG_FORMAT
//   - RULETREE_MAX_NESTING
func (c *Config) applyEnv() {
	if v := os.Getenv("RULETREE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RULETREE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("RULETREE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("RULETREE_CACHE_REDIS_URL"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("RULETREE_JOBS_REDIS_URL"); v != "" {
		c.Jobs.Enabled = true
		c.Jobs.RedisURL = v
	}
	if v := os.Getenv("RULETREE_AUTH_SIGNING_KEY"); v != "" {
		c.Auth.SigningKey = v
	}
	if v := os.Getenv("RULETREE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RULETREE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("RULETREE_MAX_NESTING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Compile.MaxNesting = n
		}
	}
}

var structValidator = validator.New()

// Validate checks the whole configuration against its struct tags.
func (c *Config) Validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldError(fe))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

func fieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "hostname_port":
		return field + " must be a host:port address"
	case "min":
		return field + " must be at least " + fe.Param()
	default:
		return field + " is invalid"
	}
}
