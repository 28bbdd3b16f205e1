// ABOUTME: HTTP client for the printer pairing API and reachability probes
// ABOUTME: Every call is bounded by its own timeout; failures are typed per host

package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/printauth/internal/authkey"
)

// DefaultTimeout bounds probes and pairing calls unless overridden.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a device response is read.
const maxResponseBytes = 1 << 20

// Credential is the pairing material issued by a device.
type Credential struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type authRequest struct {
	Application string `json:"application"`
	User        string `json:"user"`
}

type checkResponse struct {
	Message *string `json:"message"`
}

// DialContextFunc dials a device connection. Used to route printer traffic
// through a tailnet.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	Dial           DialContextFunc
	Logger         *slog.Logger
}

// Client talks to printers over HTTP. It is safe for concurrent use.
type Client struct {
	http           *http.Client
	probeTimeout   time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Dial != nil {
		transport.DialContext = cfg.Dial
	}

	return &Client{
		http:           &http.Client{Transport: transport},
		probeTimeout:   cfg.ProbeTimeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger.With("component", "printer"),
	}
}

// Probe checks that host answers HTTP at its root. Any response counts as
// reachable; the status code is not inspected.
func (c *Client) Probe(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(host)+"/", nil)
	if err != nil {
		return &TransportError{Host: host, Op: "probe", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(host, "probe", err)
	}
	drain(resp.Body)

	c.logger.Debug("probe succeeded", "host", host, "status", resp.StatusCode)
	return nil
}

// RequestCredential asks host to issue a new credential for application/user.
// The human at the device still has to accept it.
func (c *Client) RequestCredential(ctx context.Context, host, application, user string) (*Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := json.Marshal(authRequest{Application: application, User: user})
	if err != nil {
		return nil, fmt.Errorf("encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(host)+"/api/v1/auth/request", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Host: host, Op: "auth request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(host, "auth request", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProtocolError{Host: host, Op: "auth request", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("unexpected HTTP status %s", resp.Status)}
	}

	var cred Credential
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&cred); err != nil {
		if isTimeout(err) {
			return nil, transportError(host, "auth request", err)
		}
		return nil, &ProtocolError{Host: host, Op: "auth request", StatusCode: resp.StatusCode, Err: err}
	}
	if cred.ID == "" || cred.Key == "" {
		return nil, &ProtocolError{Host: host, Op: "auth request", StatusCode: resp.StatusCode,
			Err: errors.New("response missing id or key")}
	}

	c.logger.Debug("credential issued", "host", host, "id", cred.ID)
	return &cred, nil
}

// CheckStatus asks host for the current state of credential id.
// The response message is interpreted by authkey.ParseStatus.
func (c *Client) CheckStatus(ctx context.Context, host, id string) (authkey.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := baseURL(host) + "/api/v1/auth/check/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &TransportError{Host: host, Op: "auth check", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(host, "auth check", err)
	}
	defer drain(resp.Body)

	// A server error says nothing about the credential.
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &ProtocolError{Host: host, Op: "auth check", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("device error: %s", http.StatusText(resp.StatusCode))}
	}

	// Devices answer rejected or forgotten ids with a 4xx and a message body,
	// so those bodies are decoded too.
	var cr checkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&cr); err != nil {
		if isTimeout(err) {
			return "", transportError(host, "auth check", err)
		}
		return "", &ProtocolError{Host: host, Op: "auth check", StatusCode: resp.StatusCode, Err: err}
	}
	if cr.Message == nil {
		return "", &ProtocolError{Host: host, Op: "auth check", StatusCode: resp.StatusCode,
			Err: errors.New("response missing message")}
	}

	return authkey.ParseStatus(*cr.Message), nil
}

// baseURL builds the device root URL for host.
func baseURL(host string) string {
	return "http://" + host
}

func transportError(host, op string, err error) *TransportError {
	return &TransportError{Host: host, Op: op, Timeout: isTimeout(err), Err: err}
}

// isTimeout reports whether err is a deadline expiry rather than another I/O failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}
