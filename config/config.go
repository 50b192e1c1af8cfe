package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSURAI_"

type Server struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

type Auth struct {
	SigningKey           string `yaml:"signing_key" json:"signing_key"`
	TokenExpirationHours int    `yaml:"token_expiration_hours" json:"token_expiration_hours"`
	Issuer               string `yaml:"issuer" json:"issuer"`
	Audience             string `yaml:"audience" json:"audience"`
	AuthScheme           string `yaml:"auth_scheme" json:"auth_scheme"`
	BcryptCost           int    `yaml:"bcrypt_cost" json:"bcrypt_cost"`
}

type Database struct {
	DSN string `yaml:"dsn" json:"dsn"`
	// Debug logs every query run by migrations.
	Debug       bool          `yaml:"debug" json:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
}

type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type Webhook struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

type Redis struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	ListKey  string `yaml:"list_key" json:"list_key"`
}

type Notifications struct {
	Workers         int           `yaml:"workers" json:"workers"`
	QueueSize       int           `yaml:"queue_size" json:"queue_size"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" json:"delivery_timeout"`
	Webhook         Webhook       `yaml:"webhook" json:"webhook"`
	Redis           Redis         `yaml:"redis" json:"redis"`
}

type Renewals struct {
	WindowDays int `yaml:"window_days" json:"window_days"`
}

// Config is the process configuration. It satisfies insurai.Config.
type Config struct {
	Server        Server        `yaml:"server" json:"server"`
	Auth          Auth          `yaml:"auth" json:"auth"`
	Database      Database      `yaml:"database" json:"database"`
	Logging       Logging       `yaml:"logging" json:"logging"`
	Notifications Notifications `yaml:"notifications" json:"notifications"`
	Renewals      Renewals      `yaml:"renewals" json:"renewals"`
}

// Defaults returns the built-in configuration. The signing key has no
// default and must be provided.
func Defaults() *Config {
	return &Config{
		Server: Server{Addr: ":8080"},
		Auth: Auth{
			TokenExpirationHours: 10,
			Issuer:               "insurai",
			AuthScheme:           "Bearer",
			BcryptCost:           10,
		},
		Database: Database{DSN: "file:insurai.db?cache=shared", PingTimeout: 5 * time.Second},
		Logging:  Logging{Level: "info", Format: "text"},
		Notifications: Notifications{
			Workers:         4,
			QueueSize:       256,
			DeliveryTimeout: 10 * time.Second,
			Redis:           Redis{ListKey: "insurai:notifications"},
		},
		Renewals: Renewals{WindowDays: 30},
	}
}

// Load reads path on top of the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of the defaults without reading the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Addr, validation.Required),
		),
		"auth": validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.SigningKey, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.Auth.TokenExpirationHours, validation.Required, validation.Min(1)),
			validation.Field(&c.Auth.AuthScheme, validation.Required),
			validation.Field(&c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"logging": validation.ValidateStruct(&c.Logging,
			validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Logging.Format, validation.In("text", "json")),
		),
		"notifications": validation.ValidateStruct(&c.Notifications,
			validation.Field(&c.Notifications.Workers, validation.Min(1)),
			validation.Field(&c.Notifications.QueueSize, validation.Min(1)),
			validation.Field(&c.Notifications.Webhook, validation.By(func(any) error {
				return validation.Validate(c.Notifications.Webhook.URL, is.URL)
			})),
		),
		"renewals": validation.ValidateStruct(&c.Renewals,
			validation.Field(&c.Renewals.WindowDays, validation.Min(1)),
		),
	}.Filter()
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from INSURAI_<SECTION>_<FIELD> variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":                  &c.Server.Addr,
		"AUTH_SIGNING_KEY":             &c.Auth.SigningKey,
		"AUTH_ISSUER":                  &c.Auth.Issuer,
		"AUTH_AUDIENCE":                &c.Auth.Audience,
		"AUTH_AUTH_SCHEME":             &c.Auth.AuthScheme,
		"DATABASE_DSN":                 &c.Database.DSN,
		"LOGGING_LEVEL":                &c.Logging.Level,
		"LOGGING_FORMAT":               &c.Logging.Format,
		"NOTIFICATIONS_WEBHOOK_URL":    &c.Notifications.Webhook.URL,
		"NOTIFICATIONS_REDIS_ADDR":     &c.Notifications.Redis.Addr,
		"NOTIFICATIONS_REDIS_PASSWORD": &c.Notifications.Redis.Password,
		"NOTIFICATIONS_REDIS_LIST_KEY": &c.Notifications.Redis.ListKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AUTH_TOKEN_EXPIRATION_HOURS": &c.Auth.TokenExpirationHours,
		"AUTH_BCRYPT_COST":            &c.Auth.BcryptCost,
		"NOTIFICATIONS_WORKERS":       &c.Notifications.Workers,
		"NOTIFICATIONS_QUEUE_SIZE":    &c.Notifications.QueueSize,
		"NOTIFICATIONS_REDIS_DB":      &c.Notifications.Redis.DB,
		"RENEWALS_WINDOW_DAYS":        &c.Renewals.WindowDays,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError(key, v, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"NOTIFICATIONS_DELIVERY_TIMEOUT": &c.Notifications.DeliveryTimeout,
		"DATABASE_PING_TIMEOUT":          &c.Database.PingTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return envError(key, v, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "DATABASE_DEBUG"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return envError("DATABASE_DEBUG", v, err)
		}
		c.Database.Debug = b
	}

	if v, ok := lookup(EnvPrefix + "SERVER_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	return nil
}

func envError(key, value string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, fmt.Sprintf("invalid value for %s%s", EnvPrefix, key)).
		WithMetadata(map[string]any{"value": value})
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetTokenExpiration() int {
	return c.Auth.TokenExpirationHours
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetAudience() []string {
	if c.Auth.Audience == "" {
		return nil
	}
	return splitList(c.Auth.Audience)
}

func (c *Config) GetAuthScheme() string {
	return c.Auth.AuthScheme
}
