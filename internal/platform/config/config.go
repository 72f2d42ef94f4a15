package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrSigningSecretRequired is returned by Validate when no webhook signing
// secret was supplied through any config source.
var ErrSigningSecretRequired = errors.New("webhook signing secret is required (set SIGNING_SECRET or USERSYNC_WEBHOOK_SIGNINGSECRET)")

var validate = validator.New()

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Audit    AuditConfig    `koanf:"audit"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url" validate:"required"`
	MigrationsPath string `koanf:"migrationspath"`
	MaxConns       int    `koanf:"maxconns" validate:"min=0"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

type WebhookConfig struct {
	SigningSecret string `koanf:"signingsecret" validate:"required"`
	MaxBodyBytes  int64  `koanf:"maxbodybytes" validate:"min=1"`
}

type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	BufferSize    int  `koanf:"buffersize"`
	BatchSize     int  `koanf:"batchsize"`
	FlushInterval int  `koanf:"flushinterval"` // milliseconds
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"database.maxconns":       10,
		"database.migrationspath": "migrations",
		"log.level":               "info",
		"log.format":              "json",
		"webhook.maxbodybytes":    1 << 20,
		"audit.enabled":           true,
		"audit.buffersize":        1024,
		"audit.batchsize":         50,
		"audit.flushinterval":     500,
	}, "."), nil)

	// YAML files are optional, but one that exists must parse.
	for _, path := range configPaths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// SIGNING_SECRET is the name the Clerk dashboard docs tell operators to use.
	_ = k.Load(env.Provider("SIGNING_SECRET", ".", func(s string) string {
		if s != "SIGNING_SECRET" {
			return ""
		}
		return "webhook.signingsecret"
	}), nil)

	// USERSYNC_DATABASE_URL -> database.url
	_ = k.Load(env.Provider("USERSYNC_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "USERSYNC_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	return &cfg, nil
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Webhook.SigningSecret) == "" {
		return ErrSigningSecretRequired
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
