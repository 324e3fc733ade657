// Command ruqqus-watch connects a session, prints new posts and comments as they
// appear and serves health and Prometheus metrics endpoints.
//
// Settings come from an optional YAML file (-config), a .env file and RUQQUS_*
// environment variables. Refreshed credentials are kept in a SQLite database so
// the next run resumes without a new authorization code.
//
// Usage:
//
//	export RUQQUS_CLIENT_ID="your_client_id"
//	export RUQQUS_CLIENT_SECRET="your_client_secret"
//	export RUQQUS_REFRESH_TOKEN="your_refresh_token"
//	go run ./cmd/ruqqus-watch -config ruqqus.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jamesprial/go-ruqqus"
	"github.com/jamesprial/go-ruqqus/internal/config"
	"github.com/jamesprial/go-ruqqus/internal/metrics"
	"github.com/jamesprial/go-ruqqus/internal/store"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open credential store", "path", cfg.StorePath, "error", err)
		return 1
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshToken := cfg.RefreshToken
	if saved, err := db.Load(ctx, cfg.ClientID); err != nil {
		logger.Warn("failed to load saved credentials", "error", err)
	} else if saved != nil && saved.RefreshToken != "" {
		refreshToken = saved.RefreshToken
		logger.Info("resuming with saved refresh token", "scopes", saved.Scopes.String())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	session, err := ruqqus.NewSession(&ruqqus.Config{
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		RefreshToken:    refreshToken,
		AccessCode:      cfg.AccessCode,
		UserAgent:       cfg.UserAgent,
		Domain:          cfg.Domain,
		AuthDomain:      cfg.AuthDomain,
		PollInterval:    cfg.PollInterval,
		RecencyCapacity: cfg.RecencyCapacity,
		Logger:          logger,
		Registerer:      registry,
	})
	if err != nil {
		logger.Error("invalid session config", "error", err)
		return 1
	}
	defer session.Close()

	session.OnRefresh(func(creds types.Credentials) {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Save(saveCtx, creds); err != nil {
			logger.Error("failed to persist credentials", "error", err)
		}
	})
	session.OnLogin(func(u *types.User) {
		if u != nil {
			fmt.Printf("Logged in as @%s\n", u.Username)
		}
	})
	session.OnPost(printPost)
	session.OnComment(printComment)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(session, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := session.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		return 1
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return 0
	case <-session.Done():
	}

	if err := session.Err(); err != nil && !errors.Is(err, pkgerrs.ErrClosed) {
		logger.Error("session ended", "error", err)
		return 1
	}
	return 0
}

func newRouter(session *ruqqus.Session, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !session.Online() {
			http.Error(w, "offline", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "online for %s\n", session.Uptime().Round(time.Second))
	})
	r.Handle("/metrics", metrics.Handler(registry))
	return r
}

func printPost(p *types.Post) {
	guild, author := "", ""
	if p.Guild != nil {
		guild = p.Guild.Name
	}
	if p.Author != nil {
		author = p.Author.Username
	}
	fmt.Printf("[post] +%s @%s: %s\n  %s\n", guild, author, p.Content.Title, p.FullLink)
}

func printComment(c *types.Comment) {
	fmt.Printf("[comment] @%s on %s: %s\n", c.AuthorName, c.Parent.Post, truncate(c.Content.Text, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
