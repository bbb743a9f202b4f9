// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ScriptRaccoon/portfolio-website/internal/auth"
	"github.com/ScriptRaccoon/portfolio-website/internal/scheduler"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PORTFOLIO_DB_PATH" envDefault:"./data/portfolio.db"`
	ServerHost string `env:"PORTFOLIO_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PORTFOLIO_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PORTFOLIO_ENV" envDefault:"development"`
	LogLevel   string `env:"PORTFOLIO_LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"PORTFOLIO_LOG_FILE"` // Optional rotated log file

	// SiteOrigin is the scheme://host[:port] that tracking requests must come from.
	// Empty means the origin of the request itself.
	SiteOrigin   string   `env:"PORTFOLIO_SITE_ORIGIN"`
	TrackedPaths []string `env:"PORTFOLIO_TRACKED_PATHS" envSeparator:"," envDefault:"/,/about,/about/tools,/blog,/blog/*,/projects,/projects/*,/youtube"`

	// Shared key-value store
	RedisURL    string `env:"PORTFOLIO_REDIS_URL"`
	CachePrefix string `env:"PORTFOLIO_CACHE_PREFIX" envDefault:"portfolio:"`

	// Country detection
	GeoIPDBPath   string `env:"PORTFOLIO_GEOIP_DB_PATH"`                         // Path to GeoLite2-Country.mmdb file
	CountryHeader string `env:"PORTFOLIO_COUNTRY_HEADER" envDefault:"X-Country"` // Set by the edge proxy, used when GeoIP has no answer

	// TrustedProxies lists the IPs and CIDR ranges whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the TCP peer is the client.
	TrustedProxies []string `env:"PORTFOLIO_TRUSTED_PROXIES" envSeparator:","`

	// Operator report
	AdminUser         string `env:"PORTFOLIO_ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string `env:"PORTFOLIO_ADMIN_PASSWORD_HASH"` // argon2id or bcrypt; empty disables /analytics

	SessionLifetime time.Duration `env:"PORTFOLIO_SESSION_LIFETIME" envDefault:"1h"`
	RateLimitWindow time.Duration `env:"PORTFOLIO_RATE_LIMIT_WINDOW" envDefault:"2s"`

	// Jobs
	RetentionDays       int           `env:"PORTFOLIO_RETENTION_DAYS" envDefault:"7"`
	AggregationSchedule string        `env:"PORTFOLIO_AGGREGATION_SCHEDULE" envDefault:"@daily"`
	CleanupSchedule     string        `env:"PORTFOLIO_CLEANUP_SCHEDULE" envDefault:"@monthly"`
	JobTimeout          time.Duration `env:"PORTFOLIO_JOB_TIMEOUT" envDefault:"10m"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if a GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// AdminEnabled returns true if operator credentials are configured.
func (c Config) AdminEnabled() bool {
	return c.AdminPasswordHash != ""
}

// Retention returns how long aggregated live rows are kept.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.SiteOrigin != "" {
		origin, err := NormalizeOrigin(c.SiteOrigin)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORTFOLIO_SITE_ORIGIN: %w", err))
		}
		c.SiteOrigin = origin
	}

	paths := c.TrackedPaths[:0]
	for _, p := range c.TrackedPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("PORTFOLIO_TRACKED_PATHS: %q must start with /", p))
		}
		paths = append(paths, p)
	}
	c.TrackedPaths = paths

	if c.AdminPasswordHash != "" {
		if err := auth.Validate(c.AdminPasswordHash); err != nil {
			errs = append(errs, fmt.Errorf("PORTFOLIO_ADMIN_PASSWORD_HASH: %w", err))
		}
		if c.AdminUser == "" {
			errs = append(errs, errors.New("PORTFOLIO_ADMIN_USER must not be empty"))
		}
	}

	if _, err := util.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("PORTFOLIO_TRUSTED_PROXIES: %w", err))
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("PORTFOLIO_SERVER_PORT %d out of range", c.ServerPort))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("PORTFOLIO_RETENTION_DAYS must be positive, got %d", c.RetentionDays))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("PORTFOLIO_RATE_LIMIT_WINDOW must be positive"))
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("PORTFOLIO_SESSION_LIFETIME must be positive"))
	}
	if c.JobTimeout < 0 {
		errs = append(errs, errors.New("PORTFOLIO_JOB_TIMEOUT must not be negative"))
	}
	if err := scheduler.ValidateSchedule(c.AggregationSchedule); err != nil {
		errs = append(errs, fmt.Errorf("PORTFOLIO_AGGREGATION_SCHEDULE: %w", err))
	}
	if err := scheduler.ValidateSchedule(c.CleanupSchedule); err != nil {
		errs = append(errs, fmt.Errorf("PORTFOLIO_CLEANUP_SCHEDULE: %w", err))
	}

	return errors.Join(errs...)
}

// NormalizeOrigin reduces an http(s) URL to its scheme://host[:port] origin.
func NormalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("origin %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", raw)
	}
	if strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("origin %q must not contain a path, query or fragment", raw)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
