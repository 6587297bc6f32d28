package wsengine

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Dialer struct {
	Subprotocols []string

	// Username and Password, when Username is set, are sent as Basic authorization.
	Username string
	Password string

	HandshakeTimeout time.Duration

	InternalLogger *slog.Logger
}

// Dial opens a TCP connection to a ws:// URL and performs the opening handshake.
// The returned NetConn is ready to be polled by a client role Engine.
func (d *Dialer) Dial(ctx context.Context, urlStr string, headers http.Header) (*NetConn, error) {
	l := d.InternalLogger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse url: [%w]", ErrHandshakeFailure, err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	default:
		return nil, fmt.Errorf("%w: url schema must be ws, actual %q", ErrHandshakeFailure, u.Scheme)
	}

	dialAddr := u.Host
	if u.Port() == "" {
		dialAddr = net.JoinHostPort(u.Hostname(), "80")
	}

	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	l.Debug("dialing websocket server", "addr", dialAddr)

	var nd net.Dialer
	netConn, err := nd.DialContext(ctx, "tcp", dialAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial remote address %q: [%w]", dialAddr, err)
	}
	defer func() {
		if netConn != nil {
			_ = netConn.Close()
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	req := http.Request{
		Method:     http.MethodGet,
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Host:       u.Host,
		Header:     make(http.Header),
	}

	for hk, hv := range headers {
		req.Header[hk] = hv
	}

	req.Header[headerUpgrade] = []string{headerUpgradeExpected}
	req.Header[headerConn] = []string{headerConnExpected}
	req.Header[headerSecWsVersion] = []string{headerSecWsVersionExpected}

	if len(d.Subprotocols) > 0 {
		req.Header[headerSecWsProto] = []string{strings.Join(d.Subprotocols, ", ")}
	}

	if d.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		req.Header[headerAuthorization] = []string{"Basic " + cred}
	}

	secWsKey, err := NewRequestKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: [%w]", ErrHandshakeFailure, err)
	}
	expectedSecWsAccept := DeriveAcceptKey(secWsKey)

	req.Header[headerSecWsKey] = []string{secWsKey}

	err = req.Write(netConn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to write request: [%w]", ErrHandshakeFailure, err)
	}

	bufReader := bufio.NewReaderSize(netConn, defaultReadBufSize)

	res, err := http.ReadResponse(bufReader, &req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: [%w]", ErrHandshakeFailure, err)
	}

	if res.StatusCode != http.StatusSwitchingProtocols {
		return nil, fmt.Errorf(`%w: status code must be %d , actual %d`,
			ErrHandshakeFailure, http.StatusSwitchingProtocols, res.StatusCode)
	}

	actual, ok := headerEquals(res.Header, headerUpgrade, headerUpgradeExpected)
	if !ok {
		return nil, fmt.Errorf(`%w: %q header must be %q , actual %q`,
			ErrHandshakeFailure, headerUpgrade, headerUpgradeExpected, actual)
	}

	if !headerContainsToken(res.Header, headerConn, headerConnExpected) {
		return nil, fmt.Errorf(`%w: %q header must contain %q , actual %q`,
			ErrHandshakeFailure, headerConn, headerConnExpected, res.Header.Get(headerConn))
	}

	secWsAccept := res.Header.Get(headerSecWsAccept)
	if len(secWsAccept) == 0 {
		return nil, fmt.Errorf("%w: missing %q header", ErrHandshakeFailure, headerSecWsAccept)
	} else if secWsAccept != expectedSecWsAccept {
		return nil, fmt.Errorf("%w: %q header does not equal expected value", ErrHandshakeFailure, headerSecWsAccept)
	}

	err = netConn.SetDeadline(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to clear handshake deadline: [%w]", err)
	}

	l.Debug("websocket handshake complete", "addr", dialAddr)

	c := NewNetConn(netConn, bufReader)
	netConn = nil

	return c, nil
}
