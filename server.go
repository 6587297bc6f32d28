package wsengine

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Upgrade validates the opening handshake in req, hijacks the connection and
// answers with 101 Switching Protocols. The returned NetConn is ready to be
// polled by a server role Engine.
//
// On a validation error nothing is written; the caller still owns w.
func Upgrade(w http.ResponseWriter, req *http.Request, l *slog.Logger) (*NetConn, error) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}

	l.Debug("upgrading connection", "remote", req.RemoteAddr)

	accept, err := checkOpenHandshake(req, l)
	if err != nil {
		l.Debug("invalid opening handshake", "err", err)
		return nil, err
	}

	netConn, brw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hijack connection: [%w]", ErrHandshakeFailure, err)
	}

	_, err = fmt.Fprintf(brw.Writer,
		"HTTP/1.1 101 Switching Protocols\r\n%s: %s\r\n%s: %s\r\n%s: %s\r\n\r\n",
		headerUpgrade, headerUpgradeExpected,
		headerConn, headerConnExpected,
		headerSecWsAccept, accept)
	if err == nil {
		err = brw.Flush()
	}
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("%w: failed to write response: [%w]", ErrHandshakeFailure, err)
	}

	// net/http may have left deadlines from its own timeouts
	err = netConn.SetDeadline(time.Time{})
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("failed to clear connection deadline: [%w]", err)
	}

	l.Debug("connection upgraded", "remote", req.RemoteAddr)

	return NewNetConn(netConn, brw.Reader), nil
}

func checkOpenHandshake(req *http.Request, l *slog.Logger) (string, error) {
	if req.Method != http.MethodGet {
		return "", fmt.Errorf("%w: method must be GET, actual %q",
			ErrInvalidHandshakeRequest, req.Method)
	}

	actual, ok := headerEquals(req.Header, headerUpgrade, headerUpgradeExpected)
	if !ok {
		return "", fmt.Errorf(`%w: %q header must be %q , actual %q`,
			ErrInvalidHandshakeRequest, headerUpgrade, headerUpgradeExpected, actual)
	}

	if !headerContainsToken(req.Header, headerConn, headerConnExpected) {
		return "", fmt.Errorf(`%w, %q header must contain %q, actual: %q`,
			ErrInvalidHandshakeRequest, headerConn, headerConnExpected, req.Header.Get(headerConn))
	}

	actual, ok = headerEquals(req.Header, headerSecWsVersion, headerSecWsVersionExpected)
	if !ok {
		return "", fmt.Errorf(`%w, %q header must be %q, received: %q`,
			ErrInvalidHandshakeRequest, headerSecWsVersion, headerSecWsVersionExpected, actual)
	}

	if v := req.Header.Get(headerSecWsProto); v != "" {
		l.Debug("subprotocols not supported, ignoring", "header", headerSecWsProto, "value", v)
	}
	if v := req.Header.Get(headerSecWsExt); v != "" {
		l.Debug("extensions not supported, ignoring", "header", headerSecWsExt, "value", v)
	}

	secWsKey := req.Header.Get(headerSecWsKey)
	if len(secWsKey) == 0 {
		return "", fmt.Errorf("%w: missing %q header", ErrInvalidHandshakeRequest, headerSecWsKey)
	}
	decoded, err := base64.StdEncoding.DecodeString(secWsKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to base64 decode %q header: [%w]",
			ErrInvalidHandshakeRequest, headerSecWsKey, err)
	}
	if len(decoded) != 16 {
		return "", fmt.Errorf("%w: decoded value of %q must be 16 bytes, received %d bytes",
			ErrInvalidHandshakeRequest, headerSecWsKey, len(decoded))
	}

	return DeriveAcceptKey(secWsKey), nil
}
