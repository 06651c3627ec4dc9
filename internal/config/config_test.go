package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Storage:   StorageConfig{Backend: BackendPostgres, URL: "postgres://localhost/test", MaxConns: 10, MinConns: 2},
		Import:    ImportConfig{MaxFileSize: 1024, MaxRows: 10, MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute},
		Rate:      RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ImportLimit: 5},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Inventory: InventoryConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Storage.Backend != BackendPostgres {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendPostgres)
	}
	if cfg.Import.MaxConcurrent != 4 {
		t.Errorf("Import.MaxConcurrent = %d, want %d", cfg.Import.MaxConcurrent, 4)
	}
	if cfg.Import.MaxFileSize != 20971520 {
		t.Errorf("Import.MaxFileSize = %d, want %d", cfg.Import.MaxFileSize, 20971520)
	}
	if cfg.Inventory.DefaultPageSize != 10 {
		t.Errorf("Inventory.DefaultPageSize = %d, want %d", cfg.Inventory.DefaultPageSize, 10)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/inv.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("IMPORT_MAX_CONCURRENT", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Storage.SQLitePath != "/tmp/inv.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/inv.db")
	}
	if cfg.Import.MaxConcurrent != 10 {
		t.Errorf("Import.MaxConcurrent = %d, want %d", cfg.Import.MaxConcurrent, 10)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "postgres://localhost/alttest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.URL != "postgres://localhost/alttest" {
		t.Errorf("Storage.URL = %q, want %q", cfg.Storage.URL, "postgres://localhost/alttest")
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("STORAGE_BACKEND", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want mention of DATABASE_URL", err)
	}
}

func TestLoad_MemoryBackendNeedsNoURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("STORAGE_BACKEND", "memory")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadStruct_Types(t *testing.T) {
	env := map[string]string{
		"SERVER_READ_TIMEOUT":  "45s",
		"IMPORT_MAX_WAIT_TIME": "1m30s",
		"TRUSTED_PROXIES":      "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16",
		"REQUIRE_API_KEY":      "true",
	}

	var cfg Config
	err := loadStruct(reflect.ValueOf(&cfg).Elem(), func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("loadStruct() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Import.MaxWaitTime != 90*time.Second {
		t.Errorf("Import.MaxWaitTime = %v, want %v", cfg.Import.MaxWaitTime, 90*time.Second)
	}
	if !cfg.Security.RequireAPIKey {
		t.Error("Security.RequireAPIKey = false, want true")
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if !reflect.DeepEqual(cfg.Security.TrustedProxies, expected) {
		t.Errorf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, expected)
	}
}

func TestLoadStruct_InvalidValue(t *testing.T) {
	env := map[string]string{"SERVER_PORT": "eighty"}

	var cfg Config
	err := loadStruct(reflect.ValueOf(&cfg).Elem(), func(k string) string { return env[k] })
	if err == nil {
		t.Fatal("loadStruct() expected error for non-numeric port")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error = %v, want mention of SERVER_PORT", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, "STORAGE_BACKEND"},
		{"sqlite without path", func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Storage.SQLitePath = ""
		}, "SQLITE_PATH"},
		{"pool bounds", func(c *Config) { c.Storage.MinConns = 50 }, "DB_MAX_CONNS"},
		{"zero concurrency", func(c *Config) { c.Import.MaxConcurrent = 0 }, "IMPORT_MAX_CONCURRENT"},
		{"api key required but empty", func(c *Config) { c.Security.RequireAPIKey = true }, "API_KEYS"},
		{"page size bounds", func(c *Config) { c.Inventory.MaxPageSize = 5 }, "MAX_PAGE_SIZE"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "SERVER_PORT") || !strings.Contains(msg, "LOG_FORMAT") {
		t.Errorf("Validate() error = %q, want both problems listed", msg)
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.URL = "postgres://user:hunter2@db/inventory"
	cfg.Security.APIKeys = []string{"secret-key"}

	s := cfg.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, "secret-key") {
		t.Errorf("String() leaked a secret: %s", s)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := sc.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8080")
	}
	sc.Host = ""
	if got := sc.Addr(); got != ":8080" {
		t.Errorf("Addr() = %q, want %q", got, ":8080")
	}
}
