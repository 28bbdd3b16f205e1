// ABOUTME: Interactive config creation and operator token issuing
// ABOUTME: init writes a YAML config with a fresh JWT secret; token signs with it

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/printauth/internal/auth"
	"github.com/2389/printauth/internal/config"
)

// defaultTokenTTL is how long issued tokens stay valid: 30 days.
const defaultTokenTTL = 30 * 24 * time.Hour

// initAnswers are the values collected by runInit.
type initAnswers struct {
	Application string
	AppUser     string
	Hosts       []string
	HTTPAddr    string
	DBPath      string
	JWTSecret   string

	TailscaleEnabled  bool
	TailscaleHostname string
	TailscaleAuthKey  string

	NATSURL string

	LogLevel  string
	LogFormat string
}

func runInit() error {
	return runInitFrom(os.Stdin)
}

func runInitFrom(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("printauth configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaultDBPath := filepath.Join(config.DataDir(), "printauth.db")

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Pairing ---")
	a.Application = prompt(reader, "Application name", "printauth")
	a.AppUser = prompt(reader, "Application user", currentUser())
	a.Hosts = splitHosts(prompt(reader, "Printer hosts (comma separated)", ""))
	if len(a.Hosts) == 0 {
		return errors.New("at least one printer host is required")
	}

	fmt.Println("\n--- Server ---")
	a.HTTPAddr = prompt(reader, "HTTP address", "localhost:8080")
	a.DBPath = prompt(reader, "SQLite database path", defaultDBPath)

	secret, err := generateSecret()
	if err != nil {
		return err
	}
	a.JWTSecret = secret

	fmt.Println("\n--- Tailscale ---")
	a.TailscaleEnabled = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TailscaleHostname = prompt(reader, "Tailscale hostname", "printauth")
		a.TailscaleAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
	}

	fmt.Println("\n--- Events ---")
	a.NATSURL = prompt(reader, "NATS URL (leave empty to disable)", "")

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600: the file holds the JWT secret
	if err := os.WriteFile(outputFile, []byte(renderConfig(&a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  printauth token --name \"Your Name\"   # issue an API token")
	fmt.Println("  printauth serve                      # start pairing")

	return nil
}

func renderConfig(a *initAnswers) string {
	var b strings.Builder
	b.WriteString("# printauth configuration\n")
	b.WriteString("# Generated by printauth init\n\n")

	fmt.Fprintf(&b, "application: %q\n", a.Application)
	fmt.Fprintf(&b, "appuser: %q\n\n", a.AppUser)

	b.WriteString("printers:\n")
	b.WriteString("  hosts:\n")
	for _, h := range a.Hosts {
		fmt.Fprintf(&b, "    - %q\n", h)
	}
	b.WriteString("\n")

	b.WriteString("orchestrator:\n")
	b.WriteString("  interval: \"5s\"\n")
	b.WriteString("  probe_timeout: \"10s\"\n")
	b.WriteString("  request_timeout: \"10s\"\n\n")

	b.WriteString("database:\n")
	b.WriteString("  driver: \"sqlite\"\n")
	fmt.Fprintf(&b, "  path: %q\n\n", a.DBPath)

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  http_addr: %q\n\n", a.HTTPAddr)

	b.WriteString("auth:\n")
	fmt.Fprintf(&b, "  jwt_secret: %q\n\n", a.JWTSecret)

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.TailscaleEnabled)
	if a.TailscaleEnabled {
		fmt.Fprintf(&b, "  hostname: %q\n", a.TailscaleHostname)
		if a.TailscaleAuthKey != "" {
			fmt.Fprintf(&b, "  auth_key: %q\n", a.TailscaleAuthKey)
		}
	}
	b.WriteString("\n")

	if a.NATSURL != "" {
		b.WriteString("nats:\n")
		fmt.Fprintf(&b, "  url: %q\n", a.NATSURL)
		fmt.Fprintf(&b, "  subject: %q\n\n", config.DefaultNATSSubject)
	}

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", a.LogFormat)

	b.WriteString("metrics:\n")
	b.WriteString("  enabled: true\n")
	b.WriteString("  path: \"/metrics\"\n")

	return b.String()
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "printauth"
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}

	if input == "" {
		return defaultVal
	}
	return input
}

// tokenArgs are the parsed flags of the token command.
type tokenArgs struct {
	Name string
	TTL  time.Duration
}

// parseTokenArgs supports both "--name value" and "--name=value" formats.
func parseTokenArgs(args []string) (tokenArgs, error) {
	out := tokenArgs{TTL: defaultTokenTTL}
	var ttlRaw string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--name" || arg == "-n":
			if i+1 >= len(args) {
				return out, errors.New("--name requires a value")
			}
			out.Name = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			out.Name = strings.TrimPrefix(arg, "--name=")
		case arg == "--ttl":
			if i+1 >= len(args) {
				return out, errors.New("--ttl requires a value")
			}
			ttlRaw = args[i+1]
			i++
		case strings.HasPrefix(arg, "--ttl="):
			ttlRaw = strings.TrimPrefix(arg, "--ttl=")
		case strings.HasPrefix(arg, "-"):
			return out, fmt.Errorf("unknown flag: %s", arg)
		default:
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	out.Name = strings.TrimSpace(out.Name)
	if out.Name == "" {
		return out, errors.New("--name flag is required")
	}
	if len(out.Name) > 100 {
		return out, errors.New("name exceeds maximum length of 100 characters")
	}

	if ttlRaw != "" {
		d, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return out, fmt.Errorf("invalid --ttl %q: %w", ttlRaw, err)
		}
		if d <= 0 {
			return out, fmt.Errorf("invalid --ttl %q: must be positive", ttlRaw)
		}
		out.TTL = d
	}
	return out, nil
}

func runToken(args []string) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret not configured in %s (required to issue tokens)", configPath)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(parsed.Name, parsed.TTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	path := tokenPath(configPath)
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Saved token: %s\n", path)
	fmt.Printf("  Operator: %s\n", parsed.Name)
	fmt.Printf("  Expires:  %s\n", time.Now().Add(parsed.TTL).UTC().Format("Jan 02, 2006"))
	fmt.Println()
	fmt.Println(token)
	return nil
}
