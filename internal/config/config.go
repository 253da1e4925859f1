package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration for wh, stored in ~/.wh/config.json.
// The file supports single-line // comments for documentation purposes.
// Secrets are better kept in ~/.wh/.env (see applyEnv).
type Config struct {
	GitHub   GitHubConfig   `json:"github"`
	Jira     JiraConfig     `json:"jira"`
	Outlook  OutlookConfig  `json:"outlook"`
	Analysis AnalysisConfig `json:"analysis"`
	Ledger   LedgerConfig   `json:"ledger"`
	Server   ServerConfig   `json:"server"`
}

// GitHubConfig selects the repository and author whose commits are analysed.
type GitHubConfig struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Author string `json:"author"`
	// Token is a personal access token. Prefer WH_GITHUB_TOKEN.
	Token string `json:"token"`
	// BranchLimit caps how many of the most recently active branches are scanned.
	BranchLimit int `json:"branch_limit"`
	// APIURL overrides https://api.github.com (GitHub Enterprise).
	APIURL string `json:"api_url"`
}

// JiraConfig holds Jira Cloud credentials.
type JiraConfig struct {
	URL   string `json:"url"`
	Email string `json:"email"`
	// Token is an Atlassian API token. Prefer WH_JIRA_TOKEN.
	Token string `json:"token"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `json:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `json:"client_id"`
	// Category is the bucket meetings are booked on. Empty groups meetings
	// by ticket id or subject instead.
	Category string `json:"category"`
}

// AnalysisConfig tunes the reconstruction.
type AnalysisConfig struct {
	// DefaultStart (HH:MM) is assumed when the ledger has no entry for a day.
	DefaultStart string `json:"default_start"`
	// Timezone is the IANA zone used to bucket events into days. Empty = local.
	Timezone string `json:"timezone"`
	// TopN is the number of categories shown as summary cards.
	TopN int `json:"top_n"`
	// TicketPrefixes restricts ticket detection to these project keys.
	// Empty matches any KEY-123 style id.
	TicketPrefixes []string `json:"ticket_prefixes"`
}

// LedgerConfig selects the interaction ledger backend.
type LedgerConfig struct {
	// Backend is "json" (one file per day) or "sqlite".
	Backend string `json:"backend"`
	// Path overrides the default location under ~/.wh.
	Path string `json:"path"`
}

// ServerConfig configures `wh serve`.
type ServerConfig struct {
	Addr string `json:"addr"`
}

const (
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultMeetingCategory is the bucket calendar meetings are booked on.
	DefaultMeetingCategory = "Meetings"
	// DefaultStart is the assumed start of a workday without ledger evidence.
	DefaultStart = "09:00"
	// DefaultTopN is the number of highlighted categories.
	DefaultTopN = 4
	// DefaultBranchLimit is the number of active branches scanned for commits.
	DefaultBranchLimit = 20
	// DefaultBackend is the ledger backend used when none is configured.
	DefaultBackend = "json"
	// DefaultAddr is the listen address of the observer endpoint.
	DefaultAddr = "127.0.0.1:7777"
)

// Environment variables overlaid on the config file.
const (
	EnvGitHubToken  = "WH_GITHUB_TOKEN"
	EnvGitHubOwner  = "WH_GITHUB_OWNER"
	EnvGitHubRepo   = "WH_GITHUB_REPO"
	EnvGitHubAuthor = "WH_GITHUB_AUTHOR"
	EnvJiraURL      = "WH_JIRA_URL"
	EnvJiraEmail    = "WH_JIRA_EMAIL"
	EnvJiraToken    = "WH_JIRA_TOKEN"
	EnvTimezone     = "WH_TIMEZONE"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{BranchLimit: DefaultBranchLimit},
		Outlook: OutlookConfig{
			TenantID: DefaultTenantID,
			ClientID: DefaultClientID,
			Category: DefaultMeetingCategory,
		},
		Analysis: AnalysisConfig{DefaultStart: DefaultStart, TopN: DefaultTopN},
		Ledger:   LedgerConfig{Backend: DefaultBackend},
		Server:   ServerConfig{Addr: DefaultAddr},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// wh configuration – ~/.wh/config.json
//
// Tokens are best kept out of this file: put WH_GITHUB_TOKEN and
// WH_JIRA_TOKEN into ~/.wh/.env instead.
{
  // ── GitHub commit analysis (wh git) ──────────────────────────────────────
  "github": {
    "owner": "",
    "repo": "",
    // Login or e-mail the commits are filtered by.
    "author": "",
    "token": "",
    // Number of most recently active branches scanned for commits.
    "branch_limit": 20,
    // Leave empty for github.com.
    "api_url": ""
  },

  // ── Jira activity analysis (wh jira) ─────────────────────────────────────
  "jira": {
    // e.g. "https://your-company.atlassian.net"
    "url": "",
    "email": "",
    "token": ""
  },

  // ── Outlook calendar meetings (wh outlook) ───────────────────────────────
  "outlook": {
    // "common" works for personal Microsoft accounts and most organisations.
    "tenant_id": "common",
    // The built-in value is the public Azure CLI app – no app registration needed.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",
    // Category meetings are booked on. Use --by-subject to group by subject.
    "category": "Meetings"
  },

  // ── Reconstruction ───────────────────────────────────────────────────────
  "analysis": {
    // Assumed start of day when the ledger has no entry.
    "default_start": "09:00",
    // IANA timezone for day bucketing, e.g. "Europe/Berlin". Empty = local.
    "timezone": "",
    // Highlighted categories in reports.
    "top_n": 4,
    // Restrict ticket detection to these keys, e.g. ["PROJ", "OPS"].
    "ticket_prefixes": []
  },

  // ── Interaction ledger ───────────────────────────────────────────────────
  "ledger": {
    // "json" (~/.wh/ledger/YYYY/MM/DD.json) or "sqlite" (~/.wh/ledger.db)
    "backend": "json",
    "path": ""
  },

  // ── Observer endpoint (wh serve) ─────────────────────────────────────────
  "server": {
    "addr": "127.0.0.1:7777"
  }
}
`

// Dir returns the path to ~/.wh.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".wh"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// LoadFrom reads dir/config.json, creating it with annotated defaults on
// first run, and overlays dir/.env, ./.env and the process environment.
func LoadFrom(dir string) (Config, error) {
	path := filepath.Join(dir, "config.json")
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cfg = Config{}
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
		backfill(&cfg)
	}

	if err := applyEnv(&cfg, filepath.Join(dir, ".env"), ".env"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// backfill fills zero-value fields with built-in defaults so callers always
// get a usable Config even if the user only partially fills in the file.
func backfill(cfg *Config) {
	def := defaultConfig()
	if cfg.GitHub.BranchLimit <= 0 {
		cfg.GitHub.BranchLimit = def.GitHub.BranchLimit
	}
	if cfg.Outlook.TenantID == "" {
		cfg.Outlook.TenantID = def.Outlook.TenantID
	}
	if cfg.Outlook.ClientID == "" {
		cfg.Outlook.ClientID = def.Outlook.ClientID
	}
	if cfg.Outlook.Category == "" {
		cfg.Outlook.Category = def.Outlook.Category
	}
	if cfg.Analysis.DefaultStart == "" {
		cfg.Analysis.DefaultStart = def.Analysis.DefaultStart
	}
	if cfg.Analysis.TopN <= 0 {
		cfg.Analysis.TopN = def.Analysis.TopN
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = def.Ledger.Backend
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

// applyEnv overlays values from the given dotenv files (later files win) and
// then from the process environment. Missing files are skipped.
func applyEnv(cfg *Config, files ...string) error {
	vals := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		maps.Copy(vals, m)
	}
	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return vals[key]
	}
	for key, dst := range map[string]*string{
		EnvGitHubToken:  &cfg.GitHub.Token,
		EnvGitHubOwner:  &cfg.GitHub.Owner,
		EnvGitHubRepo:   &cfg.GitHub.Repo,
		EnvGitHubAuthor: &cfg.GitHub.Author,
		EnvJiraURL:      &cfg.Jira.URL,
		EnvJiraEmail:    &cfg.Jira.Email,
		EnvJiraToken:    &cfg.Jira.Token,
		EnvTimezone:     &cfg.Analysis.Timezone,
	} {
		if v := get(key); v != "" {
			*dst = v
		}
	}
	cfg.Jira.URL = strings.TrimRight(cfg.Jira.URL, "/")
	return nil
}

// Location resolves the configured timezone, falling back to time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Analysis.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Analysis.Timezone, err)
	}
	return loc, nil
}

// LedgerPath returns the ledger location for the configured backend:
// a directory for json, a database file for sqlite.
func (c Config) LedgerPath(dir string) string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	if strings.EqualFold(c.Ledger.Backend, "sqlite") {
		return filepath.Join(dir, "ledger.db")
	}
	return filepath.Join(dir, "ledger")
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
