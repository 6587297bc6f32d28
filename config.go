package wsengine

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wmdanor/wsengine/internal"
)

// Role selects which side of the connection the engine plays.
// Only the server role runs keepalive pings.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "server", "":
		*r = RoleServer
	case "client":
		*r = RoleClient
	default:
		return fmt.Errorf("unknown role %q, must be server or client", text)
	}
	return nil
}

// MaskKey is the 4-byte key used to mask outbound payloads.
// In config files it is written as 8 hex digits.
type MaskKey [4]byte

func (k *MaskKey) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.ToLower(string(text)), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("failed to decode mask key %q: [%w]", text, err)
	}
	if len(b) != len(k) {
		return fmt.Errorf("mask key must be %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return nil
}

func (k MaskKey) String() string {
	return hex.EncodeToString(k[:])
}

const (
	// DefaultMaxPayload is half of the 2 KiB packet buffer of ESP-class TCP stacks.
	DefaultMaxPayload = 1024
	MaxPayload        = internal.MaxPayload
)

type Config struct {
	Role Role `yaml:"role"`
	// Zero selects DefaultIdleBudget. Values below MinIdleBudget are raised to it.
	IdleBudget time.Duration `yaml:"idle_budget"`
	// Nil selects DefaultRetryMax. Zero forces a close on the first idle timeout.
	RetryMax    *int     `yaml:"retry_max"`
	MaskEnabled bool     `yaml:"mask_enabled"`
	MaskKey     *MaskKey `yaml:"mask_key"`
	// Capacity of both the inbound and outbound payload buffers. Zero selects DefaultMaxPayload.
	MaxPayload int `yaml:"max_payload"`

	Logger *slog.Logger `yaml:"-"`
	Clock  Clock        `yaml:"-"`
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var err error
	if c.Role != RoleServer && c.Role != RoleClient {
		err = multierr.Append(err, fmt.Errorf("invalid role %v", c.Role))
	}
	if c.IdleBudget < 0 {
		err = multierr.Append(err, fmt.Errorf("idle_budget must not be negative, got %v", c.IdleBudget))
	}
	if c.RetryMax != nil && (*c.RetryMax < 0 || *c.RetryMax > 255) {
		err = multierr.Append(err, fmt.Errorf("retry_max must be within 0..255, got %d", *c.RetryMax))
	}
	if c.MaxPayload < 0 || c.MaxPayload > MaxPayload {
		err = multierr.Append(err, fmt.Errorf("max_payload must be within 0..%d, got %d", MaxPayload, c.MaxPayload))
	}
	if c.MaskEnabled && c.MaskKey == nil {
		err = multierr.Append(err, fmt.Errorf("mask_enabled requires mask_key"))
	}
	return err
}

func (c *Config) idleBudget() time.Duration {
	switch {
	case c.IdleBudget == 0:
		return DefaultIdleBudget
	case c.IdleBudget < MinIdleBudget:
		return MinIdleBudget
	default:
		return c.IdleBudget
	}
}

func (c *Config) retryMax() uint8 {
	if c.RetryMax == nil || *c.RetryMax < 0 || *c.RetryMax > 255 {
		return DefaultRetryMax
	}
	return uint8(*c.RetryMax)
}

func (c *Config) maxPayload() int {
	if c.MaxPayload <= 0 || c.MaxPayload > MaxPayload {
		return DefaultMaxPayload
	}
	return c.MaxPayload
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultLogger()
}

// defaultLogger is built once per process so every engine shares one log file.
var defaultLogger = sync.OnceValue(func() *slog.Logger {
	return newEnvLogger(os.Getenv, os.Stdout)
})

// newEnvLogger discards everything unless WS_LOG=1. WS_LOG_FILE redirects the
// debug output from stdout to a file; if it cannot be created, the failure is
// logged to stdout and stdout is used instead.
func newEnvLogger(getenv func(string) string, stdout io.Writer) *slog.Logger {
	if getenv("WS_LOG") != "1" {
		return slog.New(slog.DiscardHandler)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	path := getenv("WS_LOG_FILE")
	if path == "" {
		return slog.New(slog.NewTextHandler(stdout, opts))
	}

	f, err := os.Create(path)
	if err != nil {
		l := slog.New(slog.NewTextHandler(stdout, opts))
		l.Warn("failed to open log file, logging to stdout", "path", path, "err", err)
		return l
	}
	return slog.New(slog.NewTextHandler(f, opts))
}

// LoadConfig reads a YAML engine configuration from path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: [%w]", path, err)
	}

	var c Config
	err = yaml.Unmarshal(b, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %q: [%w]", path, err)
	}

	if c.IdleBudget == 0 {
		c.IdleBudget = DefaultIdleBudget
	}
	if c.RetryMax == nil {
		retryMax := DefaultRetryMax
		c.RetryMax = &retryMax
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: [%w]", path, err)
	}

	return &c, nil
}
