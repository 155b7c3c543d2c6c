package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxHistoryCap is the hard ceiling on saved history records.
const MaxHistoryCap = 50

// EnvBaseURL overrides base_url from any config file.
const EnvBaseURL = "MEDSCAN_BASE_URL"

// KnownLocales lists the supported narration locales.
var KnownLocales = []string{"en", "zh"}

// Config holds application configuration.
type Config struct {
	// BaseURL is the recognition backend root, e.g. http://127.0.0.1:5000/api.
	// All three endpoints (/health, /analyze-image, /recognize) hang off it.
	BaseURL string `json:"base_url,omitempty"`

	// RequestTimeoutSeconds bounds each backend HTTP call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	// DefaultWaitSeconds is the flash-retry delay used when the quality
	// guidance does not carry a positive wait_time.
	DefaultWaitSeconds int `json:"default_wait_seconds,omitempty"`

	// MaxWaitSeconds caps the wait_time the quality guidance may ask for.
	// Larger values are clamped to it.
	MaxWaitSeconds int `json:"max_wait_seconds,omitempty"`

	// MaxFlashRetries caps automatic re-captures after "flash" guidance
	// within one user-initiated capture.
	MaxFlashRetries int `json:"max_flash_retries,omitempty"`

	// SkipPreCaptureProbe disables the health check issued before every capture.
	SkipPreCaptureProbe bool `json:"skip_pre_capture_probe,omitempty"`

	// FallbackOnRecognitionFailure substitutes a clearly flagged placeholder
	// result when the recognition call fails at the transport or parse level.
	// Off by default: a failed call surfaces RECOGNITION_FAILED instead.
	FallbackOnRecognitionFailure bool `json:"fallback_on_recognition_failure,omitempty"`

	// HistoryCap is the number of most-recent records kept. Clamped to MaxHistoryCap.
	HistoryCap int `json:"history_cap,omitempty"`

	// Locale selects narration language: "en" or "zh".
	Locale string `json:"locale,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// AllowedPaths are extra absolute directories history exports may be
	// written to, besides ~/.medscan/exports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths skips the export directory restriction. Symlinks are
	// still refused.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:               "http://127.0.0.1:5000/api",
		RequestTimeoutSeconds: 10,
		DefaultWaitSeconds:    3,
		MaxWaitSeconds:        30,
		MaxFlashRetries:       3,
		HistoryCap:            MaxHistoryCap,
		Locale:                "en",
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DefaultWait returns the default flash-retry delay as a duration.
func (c *Config) DefaultWait() time.Duration {
	return time.Duration(c.DefaultWaitSeconds) * time.Second
}

// MaxWait returns the wait_time ceiling as a duration.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// EffectiveHistoryCap returns HistoryCap clamped to [1, MaxHistoryCap].
func (c *Config) EffectiveHistoryCap() int {
	if c.HistoryCap <= 0 || c.HistoryCap > MaxHistoryCap {
		return MaxHistoryCap
	}
	return c.HistoryCap
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host, got %q", c.BaseURL)
	}
	if c.RequestTimeoutSeconds < 0 || c.DefaultWaitSeconds < 0 || c.MaxWaitSeconds < 0 || c.MaxFlashRetries < 0 {
		return fmt.Errorf("timeouts and retry counts must be non-negative")
	}
	known := false
	for _, l := range KnownLocales {
		if c.Locale == l {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown locale %q (known: %s)", c.Locale, strings.Join(KnownLocales, ", "))
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.medscan.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return applyEnv(cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.medscan) and repo (.medscan) directories.
// Repo config is found by walking upward from startDir to find the nearest .medscan/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo, then environment
	return applyEnv(Merge(Merge(DefaultConfig(), global), repo)), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .medscan/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".medscan", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// applyEnv lets MEDSCAN_BASE_URL override whatever the files said.
func applyEnv(cfg *Config) *Config {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	return cfg
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.BaseURL = strings.TrimRight(firstString(overlay.BaseURL, base.BaseURL), "/")
	result.Locale = firstString(overlay.Locale, base.Locale)
	result.RequestTimeoutSeconds = firstInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds)
	result.DefaultWaitSeconds = firstInt(overlay.DefaultWaitSeconds, base.DefaultWaitSeconds)
	result.MaxWaitSeconds = firstInt(overlay.MaxWaitSeconds, base.MaxWaitSeconds)
	result.MaxFlashRetries = firstInt(overlay.MaxFlashRetries, base.MaxFlashRetries)
	result.HistoryCap = firstInt(overlay.HistoryCap, base.HistoryCap)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.SkipPreCaptureProbe = base.SkipPreCaptureProbe || overlay.SkipPreCaptureProbe
	result.FallbackOnRecognitionFailure = base.FallbackOnRecognitionFailure || overlay.FallbackOnRecognitionFailure
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)

	return result
}

func firstString(a, b string) string {
	if s := strings.TrimSpace(a); s != "" {
		return s
	}
	return strings.TrimSpace(b)
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
