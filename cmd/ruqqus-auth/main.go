// Command ruqqus-auth walks through the authorization flow: it prints the URL
// to approve the application, receives the redirect on a local callback server,
// exchanges the code and saves the resulting refresh token for ruqqus-watch.
//
// The redirect URI registered for the application must point at this machine,
// for example http://localhost:8080/callback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jamesprial/go-ruqqus"
	"github.com/jamesprial/go-ruqqus/internal/config"
	"github.com/jamesprial/go-ruqqus/internal/store"
)

type callback struct {
	code string
	err  error
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for the redirect")
	flag.Parse()

	os.Exit(run(*configPath, *timeout))
}

func run(configPath string, timeout time.Duration) int {
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

	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Host == "" {
		logger.Error("invalid redirect uri", "uri", cfg.RedirectURI, "error", err)
		return 1
	}

	state := uuid.NewString()
	authURL, err := ruqqus.AuthURL(ruqqus.AuthURLOptions{
		ClientID:    cfg.ClientID,
		RedirectURI: cfg.RedirectURI,
		State:       state,
		Scopes:      cfg.Scopes,
		Permanent:   cfg.Permanent,
		Domain:      cfg.AuthDomain,
	})
	if err != nil {
		logger.Error("failed to build authorization url", "error", err)
		return 1
	}

	results := make(chan callback, 1)
	server := &http.Server{
		Addr:              listenAddr(redirect),
		Handler:           newCallbackRouter(redirect.Path, state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- callback{err: err}
		}
	}()
	defer server.Close()

	fmt.Println("Open this URL in a browser and approve the application:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res callback
	select {
	case res = <-results:
	case <-ctx.Done():
		logger.Error("no authorization received", "error", ctx.Err())
		return 1
	}
	if res.err != nil {
		logger.Error("authorization failed", "error", res.err)
		return 1
	}

	session, err := ruqqus.NewSession(&ruqqus.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessCode:   res.code,
		UserAgent:    cfg.UserAgent,
		Domain:       cfg.Domain,
		AuthDomain:   cfg.AuthDomain,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("invalid session config", "error", err)
		return 1
	}
	defer session.Close()

	if err := session.Connect(ctx); err != nil {
		logger.Error("failed to exchange authorization code", "error", err)
		return 1
	}

	creds := session.Credentials()
	if creds.RefreshToken == "" {
		logger.Warn("no refresh token was issued; request a permanent grant to keep the session alive")
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open credential store", "path", cfg.StorePath, "error", err)
		return 1
	}
	defer db.Close()
	if err := db.Save(ctx, creds); err != nil {
		logger.Error("failed to save credentials", "error", err)
		return 1
	}

	user := "(identity scope not granted)"
	if u := session.Identity(); u != nil {
		user = "@" + u.Username
	}
	fmt.Printf("Authorized %s with scopes %s; credentials saved to %s\n", user, creds.Scopes.String(), cfg.StorePath)
	return 0
}

func newCallbackRouter(path, state string, results chan<- callback) http.Handler {
	if path == "" {
		path = "/"
	}
	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var res callback
		switch {
		case q.Get("state") != state:
			res.err = fmt.Errorf("state mismatch in redirect")
		case q.Get("code") == "":
			res.err = fmt.Errorf("redirect carried no code: %s", q.Get("error"))
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorization received. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
	return r
}

// listenAddr binds the port of the redirect URI on all interfaces.
func listenAddr(redirect *url.URL) string {
	port := redirect.Port()
	if port == "" {
		port = "80"
		if redirect.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort("", port)
}
