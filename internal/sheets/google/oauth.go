package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultTokenFile = "token.json"

// ErrNoOAuthClient is returned when neither GOOGLE_OAUTH_CLIENT_JSON nor
// GOOGLE_OAUTH_CLIENT_FILE is set.
var ErrNoOAuthClient = errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")

// OAuthConfig loads the desktop OAuth client used to act as a Google user
// instead of a service account.
func OAuthConfig() (*oauth2.Config, error) {
	clientJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var b []byte
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		var err error
		if b, err = os.ReadFile(clientFile); err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, ErrNoOAuthClient
	}

	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// TokenFile is where the OAuth token is kept (GOOGLE_OAUTH_TOKEN_FILE).
func TokenFile() string {
	if p := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")); p != "" {
		return p
	}
	return defaultTokenFile
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// oauthTokenSource returns a refreshing token source when an OAuth client is
// configured. ok is false when only service account credentials apply.
func oauthTokenSource(ctx context.Context) (ts oauth2.TokenSource, ok bool, err error) {
	cfg, err := OAuthConfig()
	if errors.Is(err, ErrNoOAuthClient) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	path := TokenFile()
	tok, err := loadToken(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("oauth token %s not found, run `academyctl sheets-auth` first", path)
	}
	if err != nil {
		return nil, false, err
	}
	return cfg.TokenSource(ctx, tok), true, nil
}
