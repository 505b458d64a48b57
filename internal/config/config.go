package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix префикс переменных окружения, переопределяющих файл.
const EnvPrefix = "SYSCONSOLE_"

// WebToken описывает bearer-токен web-формы; хранится только sha256.
type WebToken struct {
	TokenSHA256 string   `yaml:"token_sha256"`
	Subject     string   `yaml:"subject"`
	Roles       []string `yaml:"roles"`
	Enabled     bool     `yaml:"enabled"`
}

// Config описывает параметры консоли.
type Config struct {
	Console struct {
		NoColor     bool   `yaml:"no_color" env:"NO_COLOR"`
		HistoryFile string `yaml:"history_file" env:"HISTORY_FILE"`
	} `yaml:"console" envPrefix:"CONSOLE_"`
	Log struct {
		Level string `yaml:"level" env:"LEVEL"`
	} `yaml:"log" envPrefix:"LOG_"`
	Executor struct {
		TimeoutSeconds int  `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
		UseSudo        bool `yaml:"use_sudo" env:"USE_SUDO"`
	} `yaml:"executor" envPrefix:"EXECUTOR_"`
	SQLite struct {
		Path          string `yaml:"path" env:"PATH"`
		RetentionDays int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	} `yaml:"sqlite" envPrefix:"SQLITE_"`
	Scheduler struct {
		Enabled         bool `yaml:"enabled" env:"ENABLED"`
		IntervalSeconds int  `yaml:"interval_seconds" env:"INTERVAL_SECONDS"`
	} `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Security struct {
		// Allowlist map[source][]subject; "*" разрешает любой subject источника.
		Allowlist         map[string][]string `yaml:"allowlist"`
		DenyActions       []string            `yaml:"deny_actions" env:"DENY_ACTIONS" envSeparator:","`
		RateLimit         int                 `yaml:"rate_limit" env:"RATE_LIMIT"`
		RateWindowSeconds int                 `yaml:"rate_window_seconds" env:"RATE_WINDOW_SECONDS"`
	} `yaml:"security" envPrefix:"SECURITY_"`
	Web struct {
		Enabled                  bool                `yaml:"enabled" env:"ENABLED"`
		ListenAddr               string              `yaml:"listen_addr" env:"LISTEN_ADDR"`
		ReadTimeoutMS            int                 `yaml:"read_timeout_ms" env:"READ_TIMEOUT_MS"`
		WriteTimeoutMS           int                 `yaml:"write_timeout_ms" env:"WRITE_TIMEOUT_MS"`
		RequestTimeoutMS         int                 `yaml:"request_timeout_ms" env:"REQUEST_TIMEOUT_MS"`
		ShutdownTimeoutS         int                 `yaml:"shutdown_timeout_s" env:"SHUTDOWN_TIMEOUT_S"`
		MaxBodyBytes             int64               `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
		AllowLegacySubjectHeader bool                `yaml:"allow_legacy_subject_header" env:"ALLOW_LEGACY_SUBJECT_HEADER"`
		CORSAllowedOrigins       []string            `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
		Tokens                   map[string]WebToken `yaml:"tokens"`
	} `yaml:"web" envPrefix:"WEB_"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Log.Level = "info"
	cfg.Executor.TimeoutSeconds = 300
	cfg.Executor.UseSudo = true
	cfg.SQLite.Path = defaultDBPath()
	cfg.SQLite.RetentionDays = 30
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.IntervalSeconds = 60
	cfg.Security.Allowlist = map[string][]string{"cli": {"*"}, "web": {}}
	cfg.Security.RateLimit = 5
	cfg.Security.RateWindowSeconds = 1
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.ReadTimeoutMS = 5000
	cfg.Web.WriteTimeoutMS = 330000
	cfg.Web.RequestTimeoutMS = 320000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	return cfg
}

func defaultDBPath() string {
	if runtime.GOOS == "windows" {
		base := os.Getenv("ProgramData")
		if base == "" {
			base = `C:\ProgramData`
		}
		return filepath.Join(base, "sysconsole", "state.db")
	}
	return "/var/lib/sysconsole/state.db"
}

// Load читает конфиг из файла YAML поверх значений по умолчанию,
// затем применяет переменные окружения SYSCONSOLE_*.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается оператором.
		if err != nil {
			return cfg, err
		}
		if len(data) == 0 {
			return cfg, errors.New("config file is empty")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность значений.
func (c Config) Validate() error {
	var errs []error
	if c.Executor.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("executor.timeout_seconds must not be negative"))
	}
	if c.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite.path is required"))
	}
	if c.SQLite.RetentionDays < 0 {
		errs = append(errs, errors.New("sqlite.retention_days must not be negative"))
	}
	if c.Web.Enabled && strings.TrimSpace(c.Web.ListenAddr) == "" {
		errs = append(errs, errors.New("web.listen_addr is required when web is enabled"))
	}
	for id, t := range c.Web.Tokens {
		if t.Enabled && len(strings.TrimSpace(t.TokenSHA256)) != 64 {
			errs = append(errs, fmt.Errorf("web.tokens.%s: token_sha256 must be 64 hex characters", id))
		}
	}
	return errors.Join(errs...)
}
