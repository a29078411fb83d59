// Package config provides configuration management for flowsheet-int.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/watertap-org/flowsheet-int/internal/constants"
)

// Config holds everything needed to talk to a flowsheet backend.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\flowsheet\config
//   - Unix: ~/.config/flowsheet/config
//
// INI format:
//
//	[backend]
//	url = http://127.0.0.1:8001
//	flowsheet_id = watertap.flowsheets.ro_erd
//	timeout_seconds = 300
//	max_retries = 3
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy = localhost,127.0.0.1
//
//	[logging]
//	file =
//	level = info
//
//	[notifications]
//	enabled = false
type Config struct {
	BackendURL  string
	FlowsheetID string
	Timeout     time.Duration
	MaxRetries  int

	// Proxy settings. ProxyMode is one of no-proxy, system, basic, ntlm.
	ProxyMode     string
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never written to disk
	NoProxy       string

	LogFile  string
	LogLevel string

	Notifications bool
}

// Environment variables read by MergeWithEnv.
const (
	EnvBackendURL  = "FLOWSHEET_BACKEND_URL"
	EnvFlowsheetID = "FLOWSHEET_ID"
	EnvProxyMode   = "FLOWSHEET_PROXY_MODE"
	EnvProxyPass   = "FLOWSHEET_PROXY_PASSWORD"
	EnvLogFile     = "FLOWSHEET_LOG_FILE"
)

// Validation errors
var (
	ErrMissingBackendURL  = errors.New("backend url is required")
	ErrInvalidBackendURL  = errors.New("backend url must be an absolute http(s) URL")
	ErrMissingFlowsheetID = errors.New("flowsheet id is required")
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost   = errors.New("proxy host is required for basic and ntlm proxy modes")
	ErrInvalidRetries     = errors.New("max_retries must be between 0 and 20")
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		BackendURL: constants.DefaultBackendURL,
		Timeout:    constants.DefaultRequestTimeout,
		MaxRetries: constants.DefaultMaxRetries,
		ProxyMode:  "no-proxy",
		ProxyPort:  8080,
		LogLevel:   "info",
	}
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "flowsheet")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "flowsheet")
	}

	return filepath.Join(configDir, "config"), nil
}

// Load reads configuration from an INI file.
// A missing file yields the defaults and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	backend := iniFile.Section("backend")
	cfg.BackendURL = backend.Key("url").MustString(cfg.BackendURL)
	cfg.FlowsheetID = backend.Key("flowsheet_id").String()
	cfg.Timeout = time.Duration(backend.Key("timeout_seconds").MustInt(int(cfg.Timeout/time.Second))) * time.Second
	cfg.MaxRetries = backend.Key("max_retries").MustInt(cfg.MaxRetries)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	logging := iniFile.Section("logging")
	cfg.LogFile = logging.Key("file").String()
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)

	cfg.Notifications = iniFile.Section("notifications").Key("enabled").MustBool(false)

	return cfg, nil
}

// Save writes cfg to an INI file, creating parent directories as needed.
// The proxy password is not saved.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"backend", [][2]string{
			{"url", cfg.BackendURL},
			{"flowsheet_id", cfg.FlowsheetID},
			{"timeout_seconds", strconv.Itoa(int(cfg.Timeout / time.Second))},
			{"max_retries", strconv.Itoa(cfg.MaxRetries)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", strconv.Itoa(cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
		}},
		{"logging", [][2]string{
			{"file", cfg.LogFile},
			{"level", cfg.LogLevel},
		}},
		{"notifications", [][2]string{
			{"enabled", strconv.FormatBool(cfg.Notifications)},
		}},
	}

	for _, s := range sections {
		sec, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// MergeWithEnv overrides settings from FLOWSHEET_* environment variables.
func (cfg *Config) MergeWithEnv() {
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvFlowsheetID); v != "" {
		cfg.FlowsheetID = v
	}
	if v := os.Getenv(EnvProxyMode); v != "" {
		cfg.ProxyMode = v
	}
	if v := os.Getenv(EnvProxyPass); v != "" {
		cfg.ProxyPassword = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
}

// MergeWithFlags overrides settings with non-empty command-line values.
// Priority: flags > environment > config file > defaults.
func (cfg *Config) MergeWithFlags(backendURL, flowsheetID string) {
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if flowsheetID != "" {
		cfg.FlowsheetID = flowsheetID
	}
}

// ValidateConnection checks the settings needed for any backend call.
func (cfg *Config) ValidateConnection() error {
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return ErrMissingBackendURL
	}
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBackendURL
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 20 {
		return ErrInvalidRetries
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// Validate checks the settings needed for flowsheet-scoped calls.
func (cfg *Config) Validate() error {
	if err := cfg.ValidateConnection(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.FlowsheetID) == "" {
		return ErrMissingFlowsheetID
	}
	return nil
}
