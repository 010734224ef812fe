package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateClass tunes one rate limiter resource class.
type RateClass struct {
	// Capacity is the token bucket size (burst allowance).
	Capacity float64 `json:"capacity,omitempty"`

	// RefillPerSec is the steady-state token regeneration rate.
	RefillPerSec float64 `json:"refill_per_sec,omitempty"`

	// MinDelayMs is the minimum spacing between admitted requests,
	// enforced even when tokens are available.
	MinDelayMs int `json:"min_delay_ms,omitempty"`

	// AdaptiveAfter is the served-request count past which the class
	// slows itself down. 0 disables adaptive mode.
	AdaptiveAfter int `json:"adaptive_after,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// ServiceURL is the base URL of the account's federated service.
	ServiceURL string `json:"service_url,omitempty" env:"SHADOWSKY_SERVICE_URL"`

	// AccessToken authenticates requests to the service. Environment-only:
	// it is never read from or written to config.json.
	AccessToken string `json:"-" env:"SHADOWSKY_ACCESS_TOKEN"`

	// Actor is the handle of the account the dashboard watches.
	Actor string `json:"actor,omitempty" env:"SHADOWSKY_ACTOR"`

	// StaleAfterDays is the age past which a cached profile counts as stale.
	StaleAfterDays int `json:"stale_after_days,omitempty"`

	// PageSize is the notification page size for service pulls.
	PageSize int `json:"page_size,omitempty"`

	// SyncMaxPages caps how many notification pages a single sync walks
	// when catching up past the last recorded sync mark.
	SyncMaxPages int `json:"sync_max_pages,omitempty"`

	// ProfileLimit, PostLimit, and APILimit tune the per-class rate limiter.
	ProfileLimit RateClass `json:"profile_limit,omitempty"`
	PostLimit    RateClass `json:"post_limit,omitempty"`
	APILimit     RateClass `json:"api_limit,omitempty"`

	// DBMaxOpenConns caps open connections to the cache database. 1
	// serializes every query, which sidesteps "database is locked" errors
	// under concurrent writes. 0 keeps the sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns caps idle connections kept in the pool. 0 keeps the
	// sql.DB default; usually set to match DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools names MCP tools to withhold from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// WebAddr is the listen address for the read-only dashboard.
	WebAddr string `json:"web_addr,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceURL:     "https://bsky.social",
		StaleAfterDays: 7,
		PageSize:       50,
		SyncMaxPages:   20,
		ProfileLimit:   RateClass{Capacity: 10, RefillPerSec: 2, MinDelayMs: 100, AdaptiveAfter: 200},
		PostLimit:      RateClass{Capacity: 10, RefillPerSec: 2, MinDelayMs: 100, AdaptiveAfter: 200},
		APILimit:       RateClass{Capacity: 30, RefillPerSec: 5, MinDelayMs: 50, AdaptiveAfter: 500},
		WebAddr:        "127.0.0.1:8787",
	}
}

// StaleAfter returns the staleness horizon as a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// Load loads configuration from baseDir/config.json, then applies
// environment overrides (SHADOWSKY_SERVICE_URL, SHADOWSKY_ACCESS_TOKEN,
// SHADOWSKY_ACTOR). Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.shadowsky.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	merged := Merge(DefaultConfig(), cfg)
	if err := env.Parse(merged); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return merged, nil
}

// loadFileRaw loads configuration from a specific file path.
// A missing file yields a zero-valued config, not defaults, so Merge
// can tell "unset" from "configured".
func loadFileRaw(configPath string) (*Config, error) {
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

// Merge combines base and overlay configs. A non-zero overlay scalar
// replaces the base value; slices are unioned.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars fall back to base when the overlay is zero
	result.ServiceURL = overlay.ServiceURL
	if result.ServiceURL == "" {
		result.ServiceURL = base.ServiceURL
	}

	result.AccessToken = overlay.AccessToken
	if result.AccessToken == "" {
		result.AccessToken = base.AccessToken
	}

	result.Actor = overlay.Actor
	if result.Actor == "" {
		result.Actor = base.Actor
	}

	result.StaleAfterDays = overlay.StaleAfterDays
	if result.StaleAfterDays == 0 {
		result.StaleAfterDays = base.StaleAfterDays
	}

	result.PageSize = overlay.PageSize
	if result.PageSize == 0 {
		result.PageSize = base.PageSize
	}

	result.SyncMaxPages = overlay.SyncMaxPages
	if result.SyncMaxPages == 0 {
		result.SyncMaxPages = base.SyncMaxPages
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.WebAddr = overlay.WebAddr
	if result.WebAddr == "" {
		result.WebAddr = base.WebAddr
	}

	// Rate classes: merged field by field
	result.ProfileLimit = mergeRateClass(base.ProfileLimit, overlay.ProfileLimit)
	result.PostLimit = mergeRateClass(base.PostLimit, overlay.PostLimit)
	result.APILimit = mergeRateClass(base.APILimit, overlay.APILimit)

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeRateClass overlays non-zero tuning fields over base.
func mergeRateClass(base, overlay RateClass) RateClass {
	result := overlay
	if result.Capacity == 0 {
		result.Capacity = base.Capacity
	}
	if result.RefillPerSec == 0 {
		result.RefillPerSec = base.RefillPerSec
	}
	if result.MinDelayMs == 0 {
		result.MinDelayMs = base.MinDelayMs
	}
	if result.AdaptiveAfter == 0 {
		result.AdaptiveAfter = base.AdaptiveAfter
	}
	return result
}

// mergeStringSlice unions two slices, dropping blanks and duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
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
