package msgraph_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/work-hours/internal/msgraph"
)

func newAuthenticator(t *testing.T, srvURL string) *msgraph.Authenticator {
	t.Helper()
	a := msgraph.NewAuthenticator("common", "client-id", t.TempDir())
	a.Prompt = io.Discard
	a.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if srvURL != "" {
		a.Config.Endpoint.DeviceAuthURL = srvURL + "/devicecode"
		a.Config.Endpoint.TokenURL = srvURL + "/token"
	}
	return a
}

func TestTokenUsesStoredValidToken(t *testing.T) {
	a := newAuthenticator(t, "")
	stored := &oauth2.Token{AccessToken: "stored", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	data, _ := json.Marshal(stored)
	if err := os.MkdirAll(filepath.Dir(a.TokenPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.TokenPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	tok, err := a.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "stored" {
		t.Errorf("AccessToken = %q, want stored", tok.AccessToken)
	}
}

func TestTokenDeviceFlowAndRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		r.ParseForm()
		switch {
		case r.URL.Path == "/devicecode":
			json.NewEncoder(w).Encode(map[string]any{
				"device_code":      "dev-code",
				"user_code":        "ABCD-EFGH",
				"verification_uri": "https://microsoft.com/devicelogin",
				"expires_in":       60,
				"interval":         1,
			})
		case r.URL.Path == "/token" && r.Form.Get("grant_type") == "refresh_token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "refreshed", "token_type": "Bearer",
				"refresh_token": "r2", "expires_in": 3600,
			})
		case r.URL.Path == "/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "fresh", "token_type": "Bearer",
				"refresh_token": "r1", "expires_in": 1,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newAuthenticator(t, srv.URL)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())

	tok, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token (device flow): %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want fresh", tok.AccessToken)
	}
	if _, err := os.Stat(a.TokenPath); err != nil {
		t.Fatalf("token not saved: %v", err)
	}

	// The stored token expires within the refresh margin, so the next call
	// refreshes it.
	tok, err = a.Token(ctx)
	if err != nil {
		t.Fatalf("Token (refresh): %v", err)
	}
	if tok.AccessToken != "refreshed" {
		t.Errorf("AccessToken = %q, want refreshed", tok.AccessToken)
	}
}

func TestTokenCorruptFileFallsBackToLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	a := newAuthenticator(t, srv.URL)
	if err := os.MkdirAll(filepath.Dir(a.TokenPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.TokenPath, []byte("{corrupt"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())
	if _, err := a.Token(ctx); err == nil {
		t.Error("expected device auth error after corrupt token")
	}
}
