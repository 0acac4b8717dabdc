package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("sqlassist-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Store.Driver != "sqlite3" || cfg.Store.Path != "data/customers.db" {
		t.Fatalf("Store = %+v", cfg.Store)
	}
	if cfg.Store.RowLimit != 1000 {
		t.Fatalf("Store.RowLimit = %d", cfg.Store.RowLimit)
	}
	if cfg.AI.Provider != "gemini" {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if !cfg.AI.RetryOnce {
		t.Fatal("AI.RetryOnce should default to true")
	}
	if cfg.AI.ExplainMode != ExplainModel {
		t.Fatalf("AI.ExplainMode = %q", cfg.AI.ExplainMode)
	}
	if cfg.AI.Timeout != 10*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.UI.SampleRows != 5 {
		t.Fatalf("UI.SampleRows = %d", cfg.UI.SampleRows)
	}
	if cfg.Audit.Enabled() {
		t.Fatal("audit should be disabled without a DSN")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("CORS.AllowedOrigins = %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("sqlassist-api", mapLookup(map[string]string{"SQLASSIST_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Fatalf("CORS.AllowedOrigins = %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLASSIST_PROFILE":                        "test",
		"SQLASSIST_SERVICE_NAME":                   "sqlassist-custom",
		"SQLASSIST_HTTP_ADDR":                      ":9999",
		"SQLASSIST_HTTP_READ_TIMEOUT":              "2s",
		"SQLASSIST_HTTP_WRITE_TIMEOUT":             "3s",
		"SQLASSIST_LOG_LEVEL":                      "error",
		"SQLASSIST_AUTH_REQUIRED":                  "true",
		"SQLASSIST_AUTH_STATIC_KEYS":               "k1:web",
		"SQLASSIST_STORE_DRIVER":                   "DuckDB",
		"SQLASSIST_STORE_PATH":                     "/srv/customers.duckdb",
		"SQLASSIST_STORE_ROW_LIMIT":                "0",
		"SQLASSIST_STORE_OBJECT_KEY":               "customers/duckdb/latest.duckdb",
		"SQLASSIST_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"SQLASSIST_OBJECTSTORE_BUCKET":             "stores",
		"SQLASSIST_OBJECTSTORE_REGION":             "us-west-2",
		"SQLASSIST_OBJECTSTORE_ACCESS_KEY":         "abc",
		"SQLASSIST_OBJECTSTORE_SECRET_KEY":         "def",
		"SQLASSIST_OBJECTSTORE_USE_SSL":            "true",
		"SQLASSIST_OBJECTSTORE_PREFIX":             "team-a",
		"SQLASSIST_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"SQLASSIST_AUDIT_DSN":                      "postgres://example",
		"SQLASSIST_AUDIT_MAX_OPEN_CONNS":           "42",
		"SQLASSIST_AUDIT_MAX_IDLE_CONNS":           "17",
		"SQLASSIST_UI_SAMPLE_ROWS":                 "11",
		"SQLASSIST_AI_PROVIDER":                    "OpenAI",
		"SQLASSIST_AI_BASE_URL":                    "https://api.example.com",
		"SQLASSIST_AI_API_KEY":                     "secret-key",
		"SQLASSIST_AI_MODEL":                       "gpt-4o",
		"SQLASSIST_AI_TEMPERATURE":                 "0.3",
		"SQLASSIST_AI_TIMEOUT":                     "21s",
		"SQLASSIST_AI_RETRY_ONCE":                  "false",
		"SQLASSIST_EXPLAIN_MODE":                   "off",
		"SQLASSIST_CORS_ALLOWED_ORIGINS":           "https://a.example.com, https://b.example.com,",
	})
	cfg, err := Load("sqlassist-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlassist-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:web" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Store.Driver != "duckdb" {
		t.Fatalf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != "/srv/customers.duckdb" {
		t.Fatalf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.RowLimit != 0 {
		t.Fatalf("Store.RowLimit = %d", cfg.Store.RowLimit)
	}
	if cfg.Store.ObjectKey != "customers/duckdb/latest.duckdb" {
		t.Fatalf("Store.ObjectKey = %q", cfg.Store.ObjectKey)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "stores" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if cfg.ObjectStore.Prefix != "team-a" {
		t.Fatalf("ObjectStore.Prefix = %q", cfg.ObjectStore.Prefix)
	}
	if !cfg.Audit.Enabled() || cfg.Audit.DSN != "postgres://example" {
		t.Fatalf("Audit.DSN = %q", cfg.Audit.DSN)
	}
	if cfg.Audit.MaxOpenConns != 42 || cfg.Audit.MaxIdleConns != 17 {
		t.Fatalf("Audit = %+v", cfg.Audit)
	}
	if cfg.UI.SampleRows != 11 {
		t.Fatalf("UI.SampleRows = %d", cfg.UI.SampleRows)
	}
	if cfg.AI.Provider != "openai" {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.AI.RetryOnce {
		t.Fatal("AI.RetryOnce = true, want false")
	}
	if cfg.AI.ExplainMode != ExplainOff {
		t.Fatalf("AI.ExplainMode = %q", cfg.AI.ExplainMode)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORS.AllowedOrigins = %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFallsBackToProviderAPIKey(t *testing.T) {
	cfg, err := Load("sqlassist-api", mapLookup(map[string]string{"GEMINI_API_KEY": " g-key "}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "g-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("sqlassist-api", mapLookup(map[string]string{
		"SQLASSIST_AI_PROVIDER": "openai",
		"GEMINI_API_KEY":        "g-key",
		"OPENAI_API_KEY":        "o-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "o-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("sqlassist-api", mapLookup(map[string]string{
		"SQLASSIST_AI_API_KEY": "explicit",
		"GEMINI_API_KEY":       "g-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLASSIST_PROFILE": "oops"},
		{"SQLASSIST_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLASSIST_AUDIT_MAX_OPEN_CONNS": "oops"},
		{"SQLASSIST_STORE_DRIVER": "mysql"},
		{"SQLASSIST_STORE_PATH": " "},
		{"SQLASSIST_STORE_ROW_LIMIT": "-1"},
		{"SQLASSIST_AI_PROVIDER": "llama"},
		{"SQLASSIST_AI_TEMPERATURE": "bad"},
		{"SQLASSIST_AI_TIMEOUT": "0s"},
		{"SQLASSIST_AI_RETRY_ONCE": "sometimes"},
		{"SQLASSIST_EXPLAIN_MODE": "verbose"},
		{"SQLASSIST_UI_SAMPLE_ROWS": "0"},
		{"SQLASSIST_AUTH_REQUIRED": "not-bool"},
		{"SQLASSIST_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlassist-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestEnvLookupLayersEnvFileUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlassist.env")
	content := "SQLASSIST_HTTP_ADDR=:7000\nGEMINI_API_KEY=from-file\nSQLASSIST_LOG_LEVEL=info\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lookup, err := EnvLookup(mapLookup(map[string]string{
		"SQLASSIST_ENV_FILE":  path,
		"SQLASSIST_LOG_LEVEL": "error",
	}))
	if err != nil {
		t.Fatalf("EnvLookup() error = %v", err)
	}
	cfg, err := Load("sqlassist-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":7000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.AI.APIKey != "from-file" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v, environment should win over env file", cfg.Observability.LogLevel)
	}
}

func TestEnvLookupRequiresExplicitEnvFile(t *testing.T) {
	_, err := EnvLookup(mapLookup(map[string]string{
		"SQLASSIST_ENV_FILE": filepath.Join(t.TempDir(), "missing.env"),
	}))
	if err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestChainReturnsFirstHit(t *testing.T) {
	lookup := Chain(nil, mapLookup(map[string]string{"A": "1"}), mapLookup(map[string]string{"A": "2", "B": "3"}))
	if value, ok := lookup("A"); !ok || value != "1" {
		t.Fatalf("lookup(A) = %q, %v", value, ok)
	}
	if value, ok := lookup("B"); !ok || value != "3" {
		t.Fatalf("lookup(B) = %q, %v", value, ok)
	}
	if _, ok := lookup("C"); ok {
		t.Fatal("lookup(C) should miss")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
