// ABOUTME: Tests for the printauth command helpers
// ABOUTME: Covers flag parsing, generated configs, the log handler and the API client

package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/config"
	"github.com/2389/printauth/internal/printer"
	"github.com/2389/printauth/internal/server"
	"github.com/2389/printauth/internal/store"
)

func init() {
	color.NoColor = true
}

func TestParseTokenArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    tokenArgs
		wantErr string
	}{
		{"separate value", []string{"--name", "Ada"}, tokenArgs{Name: "Ada", TTL: defaultTokenTTL}, ""},
		{"equals form", []string{"--name=Ada"}, tokenArgs{Name: "Ada", TTL: defaultTokenTTL}, ""},
		{"short flag", []string{"-n", "Ada"}, tokenArgs{Name: "Ada", TTL: defaultTokenTTL}, ""},
		{"custom ttl", []string{"--name", "Ada", "--ttl", "1h"}, tokenArgs{Name: "Ada", TTL: time.Hour}, ""},
		{"ttl equals form", []string{"--ttl=2h", "--name=Ada"}, tokenArgs{Name: "Ada", TTL: 2 * time.Hour}, ""},
		{"missing name", nil, tokenArgs{}, "--name flag is required"},
		{"whitespace name", []string{"--name", "   "}, tokenArgs{}, "--name flag is required"},
		{"name without value", []string{"--name"}, tokenArgs{}, "requires a value"},
		{"bad ttl", []string{"--name", "Ada", "--ttl", "soon"}, tokenArgs{}, "invalid --ttl"},
		{"negative ttl", []string{"--name", "Ada", "--ttl", "-1h"}, tokenArgs{}, "must be positive"},
		{"unknown flag", []string{"--admin"}, tokenArgs{}, "unknown flag"},
		{"stray argument", []string{"Ada"}, tokenArgs{}, "unexpected argument"},
		{"long name", []string{"--name", strings.Repeat("x", 101)}, tokenArgs{}, "maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTokenArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitHosts(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.5", "printer-2:8443"}, splitHosts(" 10.0.0.5 , ,printer-2:8443,"))
	assert.Empty(t, splitHosts(""))
}

func TestRenderConfig_LoadsBack(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)

	a := &initAnswers{
		Application:       "printauth",
		AppUser:           "ops",
		Hosts:             []string{"10.0.0.5", "printer-2:8443"},
		HTTPAddr:          "localhost:8080",
		DBPath:            filepath.Join(t.TempDir(), "printauth.db"),
		JWTSecret:         secret,
		TailscaleEnabled:  true,
		TailscaleHostname: "printauth",
		NATSURL:           "nats://127.0.0.1:4222",
		LogLevel:          "debug",
		LogFormat:         "json",
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(renderConfig(a)), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "printauth", cfg.Application)
	assert.Equal(t, "ops", cfg.AppUser)
	assert.Equal(t, a.Hosts, cfg.Printers.Hosts)
	assert.Equal(t, a.DBPath, cfg.Database.Path)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Equal(t, "printauth", cfg.Tailscale.Hostname)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.Interval)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestRunInitFrom(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "printauth", "config.yaml")
	dbPath := filepath.Join(dir, "data", "printauth.db")

	answers := strings.Join([]string{
		configPath,       // config file path
		"lab",            // application
		"ops",            // appuser
		"10.0.0.5",       // hosts
		"127.0.0.1:9090", // http addr
		dbPath,           // db path
		"",               // tailscale: default no
		"",               // nats: none
		"",               // log level
		"",               // log format
	}, "\n") + "\n"

	require.NoError(t, runInitFrom(strings.NewReader(answers)))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.DirExists(t, filepath.Dir(dbPath))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.Application)
	assert.Equal(t, []string{"10.0.0.5"}, cfg.Printers.Hosts)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTPAddr)
	assert.Len(t, cfg.Auth.JWTSecret, 44)
	assert.False(t, cfg.Tailscale.Enabled)
	assert.Empty(t, cfg.NATS.URL)
}

func TestRunInitFrom_RequiresHosts(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	answers := configPath + "\nlab\nops\n\n"

	err := runInitFrom(strings.NewReader(answers))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "printer host")
	assert.NoFileExists(t, configPath)
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "orchestrator").WithGroup("cycle").Info("cycle complete", "checked", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF cycle complete")
	assert.Contains(t, out, "component=orchestrator")
	assert.Contains(t, out, "cycle.checked=3")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("probe", "host", "10.0.0.5")

	assert.Contains(t, buf.String(), `"msg":"probe"`)
	assert.Contains(t, buf.String(), `"host":"10.0.0.5"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}

func TestAPIClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/credentials":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"missing or invalid token"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ready":true,"credentials":[{"host":"10.0.0.5","id":"abc","status":"authorized","available":true}],"unpaired":["10.0.0.6"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("404 page not found"))
		}
	}))
	defer srv.Close()

	t.Run("decodes response", func(t *testing.T) {
		c := &apiClient{baseURL: srv.URL, token: "tok", http: srv.Client()}
		var resp server.ListCredentialsResponse
		require.NoError(t, c.do(context.Background(), http.MethodGet, "/api/credentials", &resp))
		assert.True(t, resp.Ready)
		require.Len(t, resp.Credentials, 1)
		assert.Equal(t, authkey.StatusAuthorized, resp.Credentials[0].Status)
		assert.Equal(t, []string{"10.0.0.6"}, resp.Unpaired)
	})

	t.Run("json error message", func(t *testing.T) {
		c := &apiClient{baseURL: srv.URL, http: srv.Client()}
		err := c.do(context.Background(), http.MethodGet, "/api/credentials", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
		assert.Contains(t, err.Error(), "missing or invalid token")
	})

	t.Run("plain error body", func(t *testing.T) {
		c := &apiClient{baseURL: srv.URL, http: srv.Client()}
		err := c.do(context.Background(), http.MethodGet, "/nope", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404 page not found")
	})
}

func TestPrintCredentials(t *testing.T) {
	var buf bytes.Buffer
	printCredentials(&buf, &server.ListCredentialsResponse{
		Ready: false,
		Credentials: []server.CredentialResponse{
			{Host: "10.0.0.5", ID: "abc", Status: authkey.StatusPending, Available: true},
		},
		Unpaired: []string{"10.0.0.6"},
	})

	out := buf.String()
	assert.Contains(t, out, "setup in progress")
	assert.Contains(t, out, "HOST")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "10.0.0.6")
	assert.Contains(t, out, "unpaired")
}

func TestNewAPIClient_Env(t *testing.T) {
	t.Setenv("PRINTAUTH_URL", "http://printauth.tailnet:80/")
	t.Setenv("PRINTAUTH_TOKEN", "tok")

	c, err := newAPIClient()
	require.NoError(t, err)
	assert.Equal(t, "http://printauth.tailnet:80", c.baseURL)
	assert.Equal(t, "tok", c.token)
}

func TestNewAPIClient_TokenFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	t.Setenv("PRINTAUTH_CONFIG", configPath)
	t.Setenv("PRINTAUTH_URL", "")
	t.Setenv("PRINTAUTH_TOKEN", "")

	require.NoError(t, os.WriteFile(configPath, []byte(`
application: "printauth"
appuser: "ops"
printers:
  hosts: ["10.0.0.5"]
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "`+filepath.Join(dir, "printauth.db")+`"
`), 0600))
	require.NoError(t, os.WriteFile(tokenPath(configPath), []byte("saved-token\n"), 0600))

	c, err := newAPIClient()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", c.baseURL)
	assert.Equal(t, "saved-token", c.token)
}

func TestPrinterConfig_TailnetDialIsOptIn(t *testing.T) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, net.ErrClosed
	}
	cfg := &config.Config{
		Orchestrator: config.OrchestratorConfig{ProbeTimeout: 3 * time.Second, RequestTimeout: 7 * time.Second},
		Tailscale:    config.TailscaleConfig{Enabled: true, Hostname: "printauth"},
	}

	pc := printerConfig(cfg, dial, nil)
	assert.Nil(t, pc.Dial, "the API on the tailnet leaves LAN printers on direct dials")
	assert.Equal(t, 3*time.Second, pc.ProbeTimeout)
	assert.Equal(t, 7*time.Second, pc.RequestTimeout)

	cfg.Tailscale.DialPrinters = true
	pc = printerConfig(cfg, dial, nil)
	assert.NotNil(t, pc.Dial)
}

func TestOrchestratorOptions_SharesPrinterClient(t *testing.T) {
	printers := printer.NewClient(printer.Config{})
	opts := orchestratorOptions(store.NewMockStore(), printers, nil, nil, nil)

	assert.Same(t, printers, opts.Prober)
	assert.Same(t, printers, opts.Pairer)
}
