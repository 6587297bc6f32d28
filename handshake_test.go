package wsengine

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeriveAcceptKey(t *testing.T) {
	// RFC 6455, section 1.3
	got := DeriveAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	if got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("unexpected accept key %q", got)
	}
	t.Logf("RFC vector OK")

	for i := 0; i < 64; i++ {
		key, err := NewRequestKey()
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}

		sum := sha1.Sum([]byte(key + wsGuid))
		expected := base64.StdEncoding.EncodeToString(sum[:])

		got := DeriveAcceptKey(key)
		if got != expected {
			t.Fatalf("key %q: expected %q, got %q", key, expected, got)
		}
		if len(got) != AcceptKeyLength {
			t.Fatalf("accept key length %d", len(got))
		}
	}
}

func TestNewRequestKey(t *testing.T) {
	a, err := NewRequestKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	b, _ := NewRequestKey()

	decoded, err := base64.StdEncoding.DecodeString(a)
	if err != nil || len(decoded) != 16 {
		t.Errorf("key %q is not a base64 16 byte nonce", a)
	}
	if a == b {
		t.Errorf("two keys are equal: %q", a)
	}
}

func TestHeaderContainsToken(t *testing.T) {
	h := http.Header{}
	h.Add("Connection", "keep-alive, Upgrade")
	if !headerContainsToken(h, "Connection", "upgrade") {
		t.Errorf("token not found in list")
	}
	if headerContainsToken(h, "Connection", "close") {
		t.Errorf("absent token found")
	}
}

func validUpgradeRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestUpgradeRejectsInvalidRequests(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(r *http.Request)
	}{
		{"method", func(r *http.Request) { r.Method = http.MethodPost }},
		{"upgrade header", func(r *http.Request) { r.Header.Set("Upgrade", "h2c") }},
		{"connection header", func(r *http.Request) { r.Header.Set("Connection", "keep-alive") }},
		{"version", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Version", "8") }},
		{"missing key", func(r *http.Request) { r.Header.Del("Sec-WebSocket-Key") }},
		{"key not base64", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "!!!") }},
		{"key length", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "YWJj") }},
	}

	for _, tc := range testCases {
		req := validUpgradeRequest()
		tc.modify(req)
		rec := httptest.NewRecorder()

		_, err := Upgrade(rec, req, nil)
		if !errors.Is(err, ErrInvalidHandshakeRequest) {
			t.Errorf("%s: expected ErrInvalidHandshakeRequest, got %v", tc.name, err)
			continue
		}
		t.Logf("%s OK", tc.name)
	}
}

func TestCheckOpenHandshake(t *testing.T) {
	accept, err := checkOpenHandshake(validUpgradeRequest(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("unexpected accept key %q", accept)
	}
}

func TestDialRejectsBadAccept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Upgrade", "websocket")
		w.Header().Set("Connection", "Upgrade")
		w.Header().Set("Sec-WebSocket-Accept", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	defer srv.Close()

	d := Dialer{}
	_, err := d.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if !errors.Is(err, ErrHandshakeFailure) {
		t.Fatalf("expected ErrHandshakeFailure, got %v", err)
	}
}

func TestDialSendsBasicAuth(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		gotAuth <- fmt.Sprintf("%s:%s:%v", user, pass, ok)
		conn, err := Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		_ = conn.Disconnect()
	}))
	defer srv.Close()

	d := Dialer{Username: "esp", Password: "secret"}
	conn, err := d.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Disconnect()

	if auth := <-gotAuth; auth != "esp:secret:true" {
		t.Errorf("unexpected authorization %q", auth)
	}
}

func TestDialRejectsScheme(t *testing.T) {
	d := Dialer{}
	_, err := d.Dial(context.Background(), "wss://example.com/", nil)
	if !errors.Is(err, ErrHandshakeFailure) {
		t.Fatalf("expected ErrHandshakeFailure, got %v", err)
	}
}
