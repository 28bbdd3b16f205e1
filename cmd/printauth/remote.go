// ABOUTME: Commands that inspect or drive a running printauth server over HTTP
// ABOUTME: health, credentials and regenerate share one small API client

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/config"
	"github.com/2389/printauth/internal/server"
)

// apiClient calls a printauth server.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newAPIClient resolves the server URL and token.
// URL: PRINTAUTH_URL env var > http://server.http_addr
// Token: PRINTAUTH_TOKEN env var > token file next to the config
func newAPIClient() (*apiClient, error) {
	configPath := config.DefaultPath()

	baseURL := os.Getenv("PRINTAUTH_URL")
	if baseURL == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if cfg.Server.HTTPAddr == "" {
			return nil, errors.New("server.http_addr is not set; set PRINTAUTH_URL to reach the server")
		}
		baseURL = "http://" + cfg.Server.HTTPAddr
	}

	token := os.Getenv("PRINTAUTH_TOKEN")
	if token == "" {
		if data, err := os.ReadFile(tokenPath(configPath)); err == nil {
			token = strings.TrimSpace(string(data))
		}
	}

	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// tokenPath is where the token command saves the last issued token.
func tokenPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "token")
}

// do sends a request and decodes a JSON body into out when out is non-nil.
// Non-2xx responses become errors carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, errorMessage(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func runHealth(ctx context.Context) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Println("healthy")
	return nil
}

func runCredentials(ctx context.Context) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp server.ListCredentialsResponse
	if err := c.do(ctx, http.MethodGet, "/api/credentials", &resp); err != nil {
		return err
	}

	printCredentials(os.Stdout, &resp)
	return nil
}

func printCredentials(w io.Writer, resp *server.ListCredentialsResponse) {
	if !resp.Ready {
		color.New(color.FgYellow).Fprintln(w, "setup in progress")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tSTATUS\tAVAILABLE\tID\tUPDATED")
	for _, cred := range resp.Credentials {
		updated := "-"
		if !cred.UpdatedAt.IsZero() {
			updated = cred.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
			cred.Host, colorStatus(cred.Status), cred.Available, cred.ID, updated)
	}
	for _, host := range resp.Unpaired {
		fmt.Fprintf(tw, "%s\t%s\t%t\t-\t-\n", host, color.HiBlackString("unpaired"), false)
	}
	tw.Flush()
}

func colorStatus(s authkey.Status) string {
	switch s {
	case authkey.StatusAuthorized:
		return color.GreenString(s.String())
	case authkey.StatusUnauthorized:
		return color.RedString(s.String())
	case authkey.StatusUnknown:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}

func runRegenerate(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.HasPrefix(args[0], "-") {
		return errors.New("usage: printauth regenerate HOST")
	}
	host := args[0]

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	var cred server.CredentialResponse
	if err := c.do(ctx, http.MethodPost, "/api/credentials/"+url.PathEscape(host)+"/regenerate", &cred); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  ✓ Regenerated credential for %s\n", cred.Host)
	fmt.Printf("  ID:     %s\n", cred.ID)
	fmt.Printf("  Status: %s (accept the pairing on the printer)\n", cred.Status)
	return nil
}
