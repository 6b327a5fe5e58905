package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/incomegap/internal/utils"
)

// EnvPrefix is prepended to every environment override (INCOMEGAP_LIMIT, ...).
const EnvPrefix = "INCOMEGAP"

// Global configuration structure.
type Global struct {
	Year            int    `mapstructure:"year" yaml:"year"`
	Limit           int    `mapstructure:"limit" yaml:"limit"`
	BillingProject  string `mapstructure:"billing_project" yaml:"billing_project"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	LocalCSV        string `mapstructure:"local_csv" yaml:"local_csv"`
	Sheet           string `mapstructure:"sheet" yaml:"sheet"`
	OutDir          string `mapstructure:"out_dir" yaml:"out_dir"`

	// Remote query timeout and retry policy
	QueryTimeoutSec  int `mapstructure:"query_timeout_sec" yaml:"query_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	FigureDPI int    `mapstructure:"figure_dpi" yaml:"figure_dpi"`
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"year", "limit", "billing_project", "credentials_file", "local_csv", "sheet", "out_dir",
	"query_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"log_level", "log_format", "figure_dpi",
}

// QueryTimeout returns the remote query timeout as a duration.
func (c *Global) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

// RetryBaseDelay returns the first retry backoff.
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// DefaultPath returns ~/.incomegap/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".incomegap", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.incomegap/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; flags are applied by the caller.
// A .env file in the working directory is read first and never overrides
// variables already set in the environment.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("year", 2022)
	v.SetDefault("limit", 10000)
	v.SetDefault("billing_project", "")
	v.SetDefault("credentials_file", "")
	v.SetDefault("local_csv", "data/raw/data.csv")
	v.SetDefault("sheet", "")
	v.SetDefault("out_dir", ".")
	// Remote/retry defaults
	v.SetDefault("query_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("figure_dpi", 300)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".incomegap"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set parses val for key and stores it on c.
func (c *Global) Set(key, val string) error {
	intField := func(dst *int, lo int) error {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || i < lo {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	switch key {
	case "year":
		return intField(&c.Year, 1)
	case "limit":
		return intField(&c.Limit, 1)
	case "billing_project":
		c.BillingProject = val
	case "credentials_file":
		c.CredentialsFile = val
	case "local_csv":
		c.LocalCSV = val
	case "sheet":
		c.Sheet = val
	case "out_dir":
		c.OutDir = val
	case "query_timeout_sec":
		return intField(&c.QueryTimeoutSec, 1)
	case "retry_max_attempts":
		return intField(&c.RetryMaxAttempts, 1)
	case "retry_base_delay_ms":
		return intField(&c.RetryBaseDelayMs, 0)
	case "retry_max_delay_ms":
		return intField(&c.RetryMaxDelayMs, 0)
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	case "figure_dpi":
		return intField(&c.FigureDPI, 1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the string form of key for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "year":
		return strconv.Itoa(c.Year), nil
	case "limit":
		return strconv.Itoa(c.Limit), nil
	case "billing_project":
		return c.BillingProject, nil
	case "credentials_file":
		return c.CredentialsFile, nil
	case "local_csv":
		return c.LocalCSV, nil
	case "sheet":
		return c.Sheet, nil
	case "out_dir":
		return c.OutDir, nil
	case "query_timeout_sec":
		return strconv.Itoa(c.QueryTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "figure_dpi":
		return strconv.Itoa(c.FigureDPI), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}
