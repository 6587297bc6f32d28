package wsengine

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
role: client
idle_budget: 5s
retry_max: 7
mask_enabled: true
mask_key: "37fa213d"
max_payload: 512
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if c.Role != RoleClient {
		t.Errorf("role: %v", c.Role)
	}
	if c.IdleBudget != 5*time.Second {
		t.Errorf("idle budget: %v", c.IdleBudget)
	}
	if c.RetryMax == nil || *c.RetryMax != 7 {
		t.Errorf("retry max: %v", c.RetryMax)
	}
	if !c.MaskEnabled || c.MaskKey == nil || *c.MaskKey != (MaskKey{0x37, 0xfa, 0x21, 0x3d}) {
		t.Errorf("mask: %v %v", c.MaskEnabled, c.MaskKey)
	}
	if c.MaxPayload != 512 {
		t.Errorf("max payload: %d", c.MaxPayload)
	}

	e := New(*c)
	if e.Role() != RoleClient || e.IdleBudget() != 5*time.Second || e.RetryMax() != 7 || e.Capacity() != 512 {
		t.Errorf("engine ignored config: role=%v budget=%v retryMax=%d capacity=%d",
			e.Role(), e.IdleBudget(), e.RetryMax(), e.Capacity())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "role: server\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if c.Role != RoleServer || c.IdleBudget != DefaultIdleBudget || c.RetryMax == nil || *c.RetryMax != DefaultRetryMax ||
		c.MaxPayload != DefaultMaxPayload || c.MaskEnabled {
		t.Errorf("unexpected defaults: %+v", c)
	}
}

func TestLoadConfigZeroRetryMax(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "role: server\nretry_max: 0\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if c.RetryMax == nil || *c.RetryMax != 0 {
		t.Fatalf("explicit zero retry max replaced: %v", c.RetryMax)
	}

	e, clock, tr := newTestEngine(t, *c)
	counts := countHooks(e, HookTimeoutRetry, HookTimeoutClose)
	if e.RetryMax() != 0 {
		t.Fatalf("engine retry max: %d", e.RetryMax())
	}
	e.Start()

	clock.advance(DefaultIdleBudget)
	if err := e.Poll(tr); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if counts[HookTimeoutRetry] != 0 || counts[HookTimeoutClose] != 1 {
		t.Errorf("expected a close without retries, hooks %v", counts)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "role: broker\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Errorf("expected role error, got %v", err)
	}

	_, err = LoadConfig(writeConfig(t, "mask_key: \"12\"\n"))
	if err == nil {
		t.Errorf("short mask key accepted")
	}

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Errorf("missing file accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	retryMax := 300
	c := Config{
		Role:        Role(9),
		IdleBudget:  -time.Second,
		RetryMax:    &retryMax,
		MaxPayload:  MaxPayload + 1,
		MaskEnabled: true,
	}

	err := c.Validate()
	if n := len(multierr.Errors(err)); n != 5 {
		t.Errorf("expected 5 problems, got %d: %v", n, err)
	}

	if err := (&Config{}).Validate(); err != nil {
		t.Errorf("zero config rejected: %v", err)
	}
}

func TestNewClampsConfig(t *testing.T) {
	e := New(Config{IdleBudget: 10 * time.Millisecond, MaxPayload: MaxPayload + 1})
	if e.IdleBudget() != MinIdleBudget {
		t.Errorf("idle budget not clamped: %v", e.IdleBudget())
	}
	if e.Capacity() != DefaultMaxPayload {
		t.Errorf("capacity: %d", e.Capacity())
	}
	if e.RetryMax() != DefaultRetryMax {
		t.Errorf("retry max: %d", e.RetryMax())
	}

	e.SetIdleBudget(3 * time.Second)
	if e.IdleBudget() != 3*time.Second {
		t.Errorf("idle budget above floor changed: %v", e.IdleBudget())
	}
}

func TestEnvLogger(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	var out bytes.Buffer
	l := newEnvLogger(env(nil), &out)
	l.Info("hidden")
	if out.Len() != 0 {
		t.Errorf("logging without WS_LOG: %q", out.String())
	}

	bad := filepath.Join(t.TempDir(), "missing", "ws.log")
	l = newEnvLogger(env(map[string]string{"WS_LOG": "1", "WS_LOG_FILE": bad}), &out)
	if !strings.Contains(out.String(), "failed to open log file") || !strings.Contains(out.String(), bad) {
		t.Fatalf("log file error not reported: %q", out.String())
	}
	out.Reset()
	l.Debug("fallback")
	if !strings.Contains(out.String(), "fallback") {
		t.Errorf("fallback logger not writing to stdout: %q", out.String())
	}

	path := filepath.Join(t.TempDir(), "ws.log")
	out.Reset()
	l = newEnvLogger(env(map[string]string{"WS_LOG": "1", "WS_LOG_FILE": path}), &out)
	l.Debug("to file")
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "to file") {
		t.Errorf("log file not written: %q %v", b, err)
	}
	if out.Len() != 0 {
		t.Errorf("file logger wrote to stdout: %q", out.String())
	}
}

func TestDefaultLoggerShared(t *testing.T) {
	a, b := &Config{}, &Config{}
	if a.logger() != b.logger() {
		t.Errorf("engines got separate default loggers")
	}
}

func TestRoleText(t *testing.T) {
	var r Role
	if err := r.UnmarshalText([]byte("Client")); err != nil || r != RoleClient {
		t.Errorf("client: %v %v", r, err)
	}
	if err := r.UnmarshalText([]byte("server")); err != nil || r != RoleServer {
		t.Errorf("server: %v %v", r, err)
	}
	if r.String() != "server" || RoleClient.String() != "client" {
		t.Errorf("unexpected role names")
	}
}
