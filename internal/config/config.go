package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ExplainModel     = "model"
	ExplainHeuristic = "heuristic"
	ExplainOff       = "off"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	ObjectStore   ObjectStoreConfig
	Audit         AuditConfig
	UI            UIConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
	CORS          CORSConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver   string
	Path     string
	RowLimit int
	// ObjectKey, when set together with an object store, is fetched into Path
	// before the store is opened.
	ObjectKey string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AuditConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (a AuditConfig) Enabled() bool {
	return a.DSN != ""
}

type UIConfig struct {
	SampleRows int
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	RetryOnce   bool
	ExplainMode string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadFromEnv reads the process environment, falling back to an env file
// (SQLASSIST_ENV_FILE, or ./.env when present) for keys the environment
// does not set.
func LoadFromEnv(serviceName string) (Config, error) {
	lookup, err := EnvLookup(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLASSIST_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLASSIST_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLASSIST_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLASSIST_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "SQLASSIST_STORE_DRIVER", &cfg.Store.Driver) },
		func() error { return applyString(lookup, "SQLASSIST_STORE_PATH", &cfg.Store.Path) },
		func() error { return applyInt(lookup, "SQLASSIST_STORE_ROW_LIMIT", &cfg.Store.RowLimit) },
		func() error { return applyString(lookup, "SQLASSIST_STORE_OBJECT_KEY", &cfg.Store.ObjectKey) },
		func() error { return applyString(lookup, "SQLASSIST_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SQLASSIST_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SQLASSIST_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "SQLASSIST_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "SQLASSIST_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SQLASSIST_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SQLASSIST_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SQLASSIST_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "SQLASSIST_AUDIT_DSN", &cfg.Audit.DSN) },
		func() error { return applyInt(lookup, "SQLASSIST_AUDIT_MAX_OPEN_CONNS", &cfg.Audit.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLASSIST_AUDIT_MAX_IDLE_CONNS", &cfg.Audit.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SQLASSIST_AUDIT_CONN_MAX_IDLE_TIME", &cfg.Audit.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "SQLASSIST_AUDIT_CONN_MAX_LIFETIME", &cfg.Audit.ConnMaxLifetime)
		},
		func() error { return applyInt(lookup, "SQLASSIST_UI_SAMPLE_ROWS", &cfg.UI.SampleRows) },
		func() error { return applyString(lookup, "SQLASSIST_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "SQLASSIST_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SQLASSIST_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLASSIST_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "SQLASSIST_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "SQLASSIST_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "SQLASSIST_AI_RETRY_ONCE", &cfg.AI.RetryOnce) },
		func() error { return applyString(lookup, "SQLASSIST_EXPLAIN_MODE", &cfg.AI.ExplainMode) },
		func() error { return applyBool(lookup, "SQLASSIST_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLASSIST_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "SQLASSIST_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLASSIST_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
		func() error { return applyList(lookup, "SQLASSIST_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	cfg.AI.ExplainMode = strings.ToLower(cfg.AI.ExplainMode)
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerAPIKey(lookup, cfg.AI.Provider)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.Store.Driver {
	case "sqlite3", "duckdb":
	default:
		return fmt.Errorf("invalid SQLASSIST_STORE_DRIVER: %q", cfg.Store.Driver)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if cfg.Store.RowLimit < 0 {
		return fmt.Errorf("invalid SQLASSIST_STORE_ROW_LIMIT: must be >= 0")
	}
	switch cfg.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid SQLASSIST_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	switch cfg.AI.ExplainMode {
	case ExplainModel, ExplainHeuristic, ExplainOff:
	default:
		return fmt.Errorf("invalid SQLASSIST_EXPLAIN_MODE: %q", cfg.AI.ExplainMode)
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("invalid SQLASSIST_AI_TIMEOUT: must be > 0")
	}
	if cfg.UI.SampleRows <= 0 {
		return fmt.Errorf("invalid SQLASSIST_UI_SAMPLE_ROWS: must be > 0")
	}
	return nil
}

// providerAPIKey falls back to the key names the provider SDKs read.
func providerAPIKey(lookup LookupFunc, provider string) string {
	var key string
	switch provider {
	case "gemini":
		key = "GEMINI_API_KEY"
	case "openai":
		key = "OPENAI_API_KEY"
	default:
		return ""
	}
	raw, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlassist-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:   "sqlite3",
			Path:     "data/customers.db",
			RowLimit: 1000,
		},
		ObjectStore: ObjectStoreConfig{
			Region:           "us-east-1",
			Bucket:           "sqlassist",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			AutoCreateBucket: true,
		},
		Audit: AuditConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		UI: UIConfig{
			SampleRows: 5,
		},
		AI: AIConfig{
			Provider:    "gemini",
			Temperature: 0.1,
			Timeout:     10 * time.Second,
			RetryOnce:   true,
			ExplainMode: ExplainModel,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.AI.ExplainMode = ExplainHeuristic
		cfg.CORS.AllowedOrigins = nil
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.CORS.AllowedOrigins = nil
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
