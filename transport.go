package wsengine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Transport is the byte stream an Engine polls.
type Transport interface {
	// Available returns how many bytes can be read without blocking.
	Available() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	IsConnected() bool
	Disconnect() error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

const (
	DefaultPeekTimeout = 5 * time.Millisecond
	defaultReadBufSize = 4096
)

// NetConn adapts a net.Conn to Transport. When nothing is buffered, Available
// waits at most PeekTimeout for new data so Poll never blocks on an idle peer.
// Fill waits the same bound for the rest of a frame split across segments.
type NetConn struct {
	conn net.Conn
	r    *bufio.Reader

	PeekTimeout time.Duration

	connected bool
	err       error
}

// NewNetConn wraps conn. r may carry bytes already read from conn during the
// HTTP upgrade; when nil a fresh reader is created.
func NewNetConn(conn net.Conn, r *bufio.Reader) *NetConn {
	if r == nil {
		r = bufio.NewReaderSize(conn, defaultReadBufSize)
	}
	return &NetConn{
		conn:        conn,
		r:           r,
		PeekTimeout: DefaultPeekTimeout,
		connected:   true,
	}
}

func (c *NetConn) Available() int {
	n := c.r.Buffered()
	if n > 0 || !c.connected {
		return n
	}

	err := c.conn.SetReadDeadline(time.Now().Add(c.PeekTimeout))
	if err != nil {
		c.fail(fmt.Errorf("failed to set read deadline: [%w]", err))
		return 0
	}
	_, err = c.r.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil && !isTimeout(err) {
		c.fail(err)
	}

	return c.r.Buffered()
}

// Fill waits at most PeekTimeout until n bytes are buffered and returns how
// many are. n is capped at the read buffer size.
func (c *NetConn) Fill(n int) int {
	buffered := c.r.Buffered()
	if buffered >= n || !c.connected {
		return buffered
	}
	n = min(n, c.r.Size())

	err := c.conn.SetReadDeadline(time.Now().Add(c.PeekTimeout))
	if err != nil {
		c.fail(fmt.Errorf("failed to set read deadline: [%w]", err))
		return buffered
	}
	_, err = c.r.Peek(n)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil && !isTimeout(err) && !errors.Is(err, bufio.ErrBufferFull) {
		c.fail(err)
	}

	return c.r.Buffered()
}

func (c *NetConn) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil && !isTimeout(err) {
		c.fail(err)
	}
	return b, err
}

func (c *NetConn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil && !isTimeout(err) {
		c.fail(err)
	}
	return n, err
}

func (c *NetConn) IsConnected() bool {
	return c.connected
}

// Err returns the error that disconnected the stream, if any.
func (c *NetConn) Err() error {
	return c.err
}

func (c *NetConn) Disconnect() error {
	c.connected = false
	err := c.conn.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: [%w]", err)
	}
	return nil
}

func (c *NetConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *NetConn) fail(err error) {
	if c.err == nil {
		c.err = err
	}
	c.connected = false
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
