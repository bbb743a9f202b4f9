// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ScriptRaccoon/portfolio-website/internal/analytics"
	"github.com/ScriptRaccoon/portfolio-website/internal/auth"
	"github.com/ScriptRaccoon/portfolio-website/internal/cache"
	"github.com/ScriptRaccoon/portfolio-website/internal/config"
	"github.com/ScriptRaccoon/portfolio-website/internal/geoip"
	"github.com/ScriptRaccoon/portfolio-website/internal/limiter"
	"github.com/ScriptRaccoon/portfolio-website/internal/logging"
	"github.com/ScriptRaccoon/portfolio-website/internal/metrics"
	"github.com/ScriptRaccoon/portfolio-website/internal/scheduler"
	"github.com/ScriptRaccoon/portfolio-website/internal/session"
	"github.com/ScriptRaccoon/portfolio-website/internal/store"
	"github.com/ScriptRaccoon/portfolio-website/internal/util"
	"github.com/ScriptRaccoon/portfolio-website/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	sessionCleanupInterval = 5 * time.Minute
	eventLogRetention      = 90 * 24 * time.Hour
	geoIPReloadSchedule    = "@hourly"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin and print its argon2id hash")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "portfolio - visit analytics for the portfolio website\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_DB_PATH              SQLite database path (default: ./data/portfolio.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_SERVER_PORT          Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_ENV                  Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_SITE_ORIGIN          Origin tracking requests must come from\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_REDIS_URL            Redis URL for likes and rate limits (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_TRUSTED_PROXIES      Proxy IPs/CIDRs allowed to set X-Forwarded-For (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_GEOIP_DB_PATH        GeoLite2-Country database (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PORTFOLIO_ADMIN_PASSWORD_HASH  argon2id/bcrypt hash enabling /analytics (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if *hashPassword {
		if err := printPasswordHash(os.Stdin, os.Stdout); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "hash-password: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// app bundles the long-lived components the routes are built from.
type app struct {
	cfg       *config.Config
	info      version.Info
	db        *sql.DB
	logger    *slog.Logger
	cache     cache.Cache
	limiter   *limiter.Limiter
	geo       *geoip.Lookup
	metrics   *metrics.Metrics
	scheduler *scheduler.Scheduler
	reporter  *analytics.Reporter
	proxies   *util.TrustedProxies
	csrfKey   []byte
}

func run(info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := logging.ParseLevel(cfg.LogLevel)
	logOutput, logCloser := logging.Output(cfg.LogFile)
	defer func() { _ = logCloser.Close() }()

	logger := logging.NewLogger(logOutput, logLevel)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Also write WARN and ERROR records to the event log table
	textHandler := logger.Handler()
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	c, err := cache.New(cache.Config{
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       time.Hour,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	geo := geoip.NewLookup()
	if err := geo.Init(cfg.GeoIPDBPath); err != nil {
		slog.Warn("geoip disabled", "path", cfg.GeoIPDBPath, "error", err)
	} else if geo.IsEnabled() {
		slog.Info("geoip enabled", "path", cfg.GeoIPDBPath)
	}
	defer func() { _ = geo.Close() }()

	m := metrics.New()

	sched := scheduler.New(logger, m)
	if err := registerJobs(sched, cfg, db, geo, logger, m); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	proxies, err := util.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return fmt.Errorf("generating csrf key: %w", err)
	}

	a := &app{
		cfg:       cfg,
		info:      info,
		db:        db,
		logger:    logger,
		cache:     c,
		limiter:   limiter.New(c, cfg.RateLimitWindow),
		geo:       geo,
		metrics:   m,
		scheduler: sched,
		reporter:  analytics.NewReporter(db),
		proxies:   proxies,
		csrfKey:   csrfKey,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sm := session.New(db, cfg.IsDevelopment(), cfg.SessionLifetime, sessionCleanupInterval)
	r := a.routes(ctx, sm)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// registerJobs schedules aggregation, cleanup and, when a GeoIP database is
// configured, the hourly database reload.
func registerJobs(s *scheduler.Scheduler, cfg *config.Config, db *sql.DB, geo *geoip.Lookup, logger *slog.Logger, m *metrics.Metrics) error {
	aggregator := analytics.NewAggregator(db, logger, m)
	pruner := analytics.NewPruner(db, cfg.Retention(), logger, m).WithEventRetention(eventLogRetention)

	jobs := []scheduler.Job{
		analytics.AggregationJob(aggregator, cfg.AggregationSchedule, cfg.JobTimeout),
		analytics.CleanupJob(pruner, cfg.CleanupSchedule, cfg.JobTimeout),
	}
	if cfg.GeoIPEnabled() {
		jobs = append(jobs, scheduler.Job{
			Name:        "geoip_reload",
			Description: "Reopen the GeoIP database when the file changed",
			Schedule:    geoIPReloadSchedule,
			Timeout:     time.Minute,
			Run: func(context.Context) error {
				return geo.Reload()
			},
		})
	}

	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return fmt.Errorf("registering job %s: %w", job.Name, err)
		}
	}
	return nil
}

// printPasswordHash hashes the first line of in for PORTFOLIO_ADMIN_PASSWORD_HASH.
func printPasswordHash(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
