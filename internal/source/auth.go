package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// Credential material lives under the user config dir, next to the TOML
// profiles: credentials.json is the OAuth client downloaded from the Google
// Cloud console, token.json is written by `avail setup`.
const (
	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

func authDir() (string, error) {
	if dir := os.Getenv("AVAIL_AUTH_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, "avail"), nil
}

func oauthConfig() (*oauth2.Config, error) {
	dir, err := authDir()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("read OAuth client credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client credentials: %w", err)
	}
	return conf, nil
}

// AuthURL returns the consent URL the user must visit during setup.
func AuthURL() (string, error) {
	conf, err := oauthConfig()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline), nil
}

// SaveAuthCode exchanges the pasted authorization code and persists the
// resulting token for later runs.
func SaveAuthCode(ctx context.Context, code string) error {
	conf, err := oauthConfig()
	if err != nil {
		return err
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	dir, err := authDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tokenFile), raw, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// HasToken reports whether a stored token exists, without validating it.
func HasToken() bool {
	dir, err := authDir()
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, tokenFile))
	return err == nil
}

func tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := oauthConfig()
	if err != nil {
		return nil, err
	}
	dir, err := authDir()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if err != nil {
		return nil, fmt.Errorf("no stored token, run `avail setup` first: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return conf.TokenSource(ctx, tok), nil
}
