// Package main provides the entry point for ottmwiki.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sa/ottmwiki/internal/config"
	"github.com/sa/ottmwiki/internal/cron"
	"github.com/sa/ottmwiki/internal/db"
	"github.com/sa/ottmwiki/internal/handlers"
	"github.com/sa/ottmwiki/internal/metrics"
	"github.com/sa/ottmwiki/internal/models"
	"github.com/sa/ottmwiki/internal/parser"
	"github.com/sa/ottmwiki/internal/storage"
	"github.com/sa/ottmwiki/internal/wiki"
	"github.com/sa/ottmwiki/web"
)

// Version is set at build time.
var Version = "dev"

// initLogger configures the default slog logger based on config.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// fatal logs an error message and exits the process.
func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	host := flag.String("host", "", "Host/IP to bind to (default: all interfaces)")
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "", "Path to SQLite database file")
	templatesPath := flag.String("templates", "", "Path to templates directory (overrides embedded)")
	staticPath := flag.String("static", "", "Path to static files directory (overrides embedded)")
	mirrorPath := flag.String("mirror", "", "Path to the git content mirror (overrides config)")
	flag.Parse()

	cfg := config.Load()
	logger := initLogger(cfg)

	if *dbPath != "" {
		cfg.DatabaseURI = "sqlite:///" + *dbPath
	}
	if *mirrorPath != "" {
		cfg.MirrorRepository = *mirrorPath
		cfg.MirrorEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		fatal("configuration error", "error", err)
	}

	logger.Info("starting ottmwiki", "version", Version)

	database, err := db.Open(cfg.DatabaseURI)
	if err != nil {
		fatal("failed to open database", "error", err)
	}
	defer database.Close()

	if err := database.Migrate(context.Background()); err != nil {
		fatal("failed to run migrations", "error", err)
	}

	ns := wiki.NewNamespaceRegistry()
	svc := wiki.NewService(cfg, database, ns)
	if err := svc.EnsureDefaultGroups(context.Background()); err != nil {
		fatal("failed to create default groups", "error", err)
	}
	if err := ensureMainPage(context.Background(), cfg, svc); err != nil {
		logger.Warn("failed to create main page", "error", err)
	}

	p := parser.New(parser.NewRegistry())
	m := metrics.New()

	server := handlers.NewServer(cfg, database, svc, p, logger, m, Version)

	var templatesFS fs.FS
	if *templatesPath != "" {
		logger.Info("loading templates from filesystem", "path", *templatesPath)
		templatesFS = os.DirFS(*templatesPath)
	} else {
		templatesFS, err = fs.Sub(web.TemplatesFS, "templates")
		if err != nil {
			fatal("failed to access embedded templates", "error", err)
		}
	}
	if err := server.LoadTemplates(templatesFS); err != nil {
		fatal("failed to load templates", "error", err)
	}

	if *staticPath != "" {
		logger.Info("serving static files from filesystem", "path", *staticPath)
		server.StaticFS = os.DirFS(*staticPath)
	} else {
		server.StaticFS, err = fs.Sub(web.StaticFS, "static")
		if err != nil {
			fatal("failed to access embedded static files", "error", err)
		}
	}

	// Background maintenance.
	cronCtx, cancelCron := context.WithCancel(context.Background())
	defer cancelCron()
	scheduler := cron.New(logger)
	scheduler.OnRun(func(job string, err error) {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		m.CronRunsTotal.WithLabelValues(job, outcome).Inc()
	})
	jobs := &cron.Jobs{Cfg: cfg, Svc: svc, Parser: p, Logger: logger}
	if cfg.MirrorEnabled && cfg.MirrorRepository != "" {
		mirror, err := storage.OpenMirror(cfg.MirrorRepository)
		if err != nil {
			fatal("failed to open content mirror", "error", err)
		}
		jobs.Mirror = mirror
	}
	jobs.RegisterAll(scheduler)
	scheduler.Start(cronCtx)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancelCron()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// ensureMainPage seeds the configured main page on an empty wiki.
func ensureMainPage(ctx context.Context, cfg *config.Config, svc *wiki.Service) error {
	ns, title, err := svc.Namespaces().ResolveTitle(cfg.MainPage)
	if err != nil {
		return err
	}
	exists, err := svc.PageExists(ctx, ns.ID, title)
	if err != nil || exists {
		return err
	}
	content := fmt.Sprintf(`Welcome to **%s**!

This wiki is empty. Use the edit action to fill this page in.

{# Useful starting points: #}
* [[Special:RecentChanges]]
* [[Special:SpecialPages]]
`, cfg.SiteName)
	_, err = svc.Edit(ctx, models.Anonymous("127.0.0.1"), ns, title, content, wiki.EditParams{
		Comment: "Initial page",
		Bot:     true,
	})
	return err
}
