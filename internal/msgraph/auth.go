package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

var requiredScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// OAuth2Config returns the oauth2.Config for Microsoft Graph using the
// provided tenant and client IDs.
func OAuth2Config(tenantID, clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   requiredScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: msEndpoint(tenantID, "devicecode"),
			TokenURL:      msEndpoint(tenantID, "token"),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// Authenticator obtains Graph tokens, reusing and refreshing the token
// stored at TokenPath and falling back to the device code flow.
type Authenticator struct {
	Config    *oauth2.Config
	TokenPath string
	// Prompt receives the device code instructions.
	Prompt io.Writer
	Logger *slog.Logger
}

// NewAuthenticator returns an Authenticator that keeps its token under
// dir/auth/msgraph_tokens.json.
func NewAuthenticator(tenantID, clientID, dir string) *Authenticator {
	return &Authenticator{
		Config:    OAuth2Config(tenantID, clientID),
		TokenPath: filepath.Join(dir, "auth", "msgraph_tokens.json"),
		Prompt:    os.Stdout,
		Logger:    slog.Default(),
	}
}

// HTTPClient returns an authorised client. Refreshed tokens are written
// back to TokenPath.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	ts := a.Config.TokenSource(ctx, tok)
	return oauth2.NewClient(ctx, &savingTokenSource{ts: ts, auth: a}), nil
}

// Token returns a usable token: the stored one if still valid, a refreshed
// one, or a new one from the device code flow.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.loadToken()
	if err != nil {
		// Corrupt token: warn and re-auth.
		a.Logger.Warn("ignoring stored token", "err", err)
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := a.Config.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := a.saveToken(refreshed); err != nil {
				a.Logger.Warn("could not save refreshed token", "err", err)
			}
			return refreshed, nil
		}
		a.Logger.Warn("token refresh failed, re-authenticating", "err", err)
	}

	return a.Login(ctx)
}

// Login runs the device code flow and stores the resulting token.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	resp, err := a.Config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(a.Prompt)
	fmt.Fprintln(a.Prompt, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(a.Prompt, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(a.Prompt, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(a.Prompt)

	tok, err := a.Config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := a.saveToken(tok); err != nil {
		a.Logger.Warn("could not save token", "err", err)
	}
	return tok, nil
}

// savingTokenSource wraps a TokenSource and persists refreshed tokens.
type savingTokenSource struct {
	ts   oauth2.TokenSource
	auth *Authenticator
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		// Best-effort save; ignore errors.
		_ = s.auth.saveToken(tok)
	}
	return tok, nil
}

// loadToken loads a previously saved token. A missing file is not an error.
func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.TokenPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", a.TokenPath, err)
	}
	return &tok, nil
}

// saveToken persists a token atomically.
func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.TokenPath), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := a.TokenPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, a.TokenPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}
