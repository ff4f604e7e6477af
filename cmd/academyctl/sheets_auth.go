package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	gsheet "academy/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

// sheetsAuth runs the OAuth consent flow on a local callback server and
// saves the token where the worker's Sheets client looks for it.
func (c *ctl) sheetsAuth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sheets-auth", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	port := fs.String("port", envOr("OAUTH_REDIRECT_PORT", "8085"), "local port for the OAuth redirect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gsheet.OAuthConfig()
	if err != nil {
		return err
	}
	// The OAuth client must list this URI among its authorized redirect URIs.
	cfg.RedirectURL = "http://localhost:" + *port + "/callback"
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			codeCh <- q.Get("code")
		}
	})

	ln, err := net.Listen("tcp", "localhost:"+*port)
	if err != nil {
		return fmt.Errorf("listen for oauth redirect: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(c.stdout, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("authorization timed out")
		}
		return errors.New("interrupted")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	path := gsheet.TokenFile()
	if err := gsheet.SaveToken(path, tok); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Saved token to %s\n", path)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
