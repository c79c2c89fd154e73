package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	OAuth2 struct {
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		IDTokenTTL string `yaml:"id_token_ttl"`
		CodeTTL    string `yaml:"code_ttl"`
		// Chequeo de subconjunto de resources contra lo autorizado.
		// Apagarlo es una decisión explícita de despliegue.
		ResourceConsistency *bool `yaml:"resource_consistency"`
	} `yaml:"oauth2"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
	} `yaml:"rate"`

	Signing struct {
		// Alg por defecto cuando ni client ni domain lo fijan.
		Default string       `yaml:"default"`
		Keys    []SigningKey `yaml:"keys"`
	} `yaml:"signing"`
}

// SigningKey describe una clave de firma estática del YAML. RSA por PEM en
// archivo; HMAC por secreto inline (solo dev).
type SigningKey struct {
	KID     string `yaml:"kid"`
	Alg     string `yaml:"alg"` // RS256/384/512 | HS256/384/512
	PEMFile string `yaml:"pem_file"`
	Secret  string `yaml:"secret"`
	CertID  string `yaml:"cert_id"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.OAuth2.AccessTTL == "" {
		c.OAuth2.AccessTTL = "15m"
	}
	if c.OAuth2.RefreshTTL == "" {
		c.OAuth2.RefreshTTL = "720h" // 30d
	}
	if c.OAuth2.IDTokenTTL == "" {
		c.OAuth2.IDTokenTTL = "1h"
	}
	if c.OAuth2.CodeTTL == "" {
		c.OAuth2.CodeTTL = "2m"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Signing.Default == "" {
		c.Signing.Default = "RS256"
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ResourceConsistencyEnabled: prendido salvo opt-out explícito.
func (c *Config) ResourceConsistencyEnabled() bool {
	if c.OAuth2.ResourceConsistency == nil {
		return true
	}
	return *c.OAuth2.ResourceConsistency
}

// Duration parsea un campo de duración ya validado por Load.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) validate() error {
	for _, field := range []struct{ name, v string }{
		{"oauth2.access_ttl", c.OAuth2.AccessTTL},
		{"oauth2.refresh_ttl", c.OAuth2.RefreshTTL},
		{"oauth2.id_token_ttl", c.OAuth2.IDTokenTTL},
		{"oauth2.code_ttl", c.OAuth2.CodeTTL},
		{"cache.memory.default_ttl", c.Cache.Memory.DefaultTTL},
		{"rate.window", c.Rate.Window},
	} {
		if _, err := time.ParseDuration(field.v); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn is required with the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("config: cache.redis.addr is required with the redis cache")
		}
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	for i, k := range c.Signing.Keys {
		if k.KID == "" {
			return fmt.Errorf("config: signing.keys[%d]: kid is required", i)
		}
		switch {
		case k.Alg == "":
			// Sin alg explícito: RSA con alg derivado del tamaño de clave.
			if k.PEMFile == "" {
				return fmt.Errorf("config: signing key %s: pem_file is required when alg is omitted", k.KID)
			}
		case strings.HasPrefix(k.Alg, "RS"):
			if k.PEMFile == "" {
				return fmt.Errorf("config: signing key %s: pem_file is required for %s", k.KID, k.Alg)
			}
		case strings.HasPrefix(k.Alg, "HS"):
			if k.Secret == "" {
				return fmt.Errorf("config: signing key %s: secret is required for %s", k.KID, k.Alg)
			}
		default:
			return fmt.Errorf("config: signing key %s: unsupported alg %q", k.KID, k.Alg)
		}
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// OAUTH2
	if v, ok := getEnvStr("OAUTH2_ACCESS_TTL"); ok {
		c.OAuth2.AccessTTL = v
	}
	if v, ok := getEnvStr("OAUTH2_REFRESH_TTL"); ok {
		c.OAuth2.RefreshTTL = v
	}
	if v, ok := getEnvStr("OAUTH2_ID_TOKEN_TTL"); ok {
		c.OAuth2.IDTokenTTL = v
	}
	if v, ok := getEnvStr("OAUTH2_CODE_TTL"); ok {
		c.OAuth2.CodeTTL = v
	}
	if v, ok := getEnvBool("OAUTH2_RESOURCE_CONSISTENCY"); ok {
		c.OAuth2.ResourceConsistency = &v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	if v, ok := getEnvStr("SIGNING_DEFAULT_ALG"); ok {
		c.Signing.Default = v
	}
}
