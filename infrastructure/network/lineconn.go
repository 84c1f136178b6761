package network

import (
	"bufio"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrReadTimeout reports an expired read deadline; callers treat it as a
// benign tick on steady-state loops.
var ErrReadTimeout = errors.New("read timeout")

// LineConn wraps a net.Conn with buffered newline-terminated line I/O.
// The buffered reader is created once, so bytes read ahead during one phase
// (auth, engine selection) stay available to the next. Close is idempotent.
type LineConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewLineConn(conn net.Conn) *LineConn {
	return &LineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// ReadLine reads one line, stripped of its trailing newline. A zero timeout
// blocks indefinitely; an expired deadline returns ErrReadTimeout.
func (c *LineConn) ReadLine(timeout time.Duration) (string, error) {
	if timeout > 0 {
		if deadlineErr := c.conn.SetReadDeadline(time.Now().Add(timeout)); deadlineErr != nil {
			return "", deadlineErr
		}
	} else {
		if deadlineErr := c.conn.SetReadDeadline(time.Time{}); deadlineErr != nil {
			return "", deadlineErr
		}
	}

	line, readErr := c.reader.ReadString('\n')
	if readErr != nil {
		var netErr net.Error
		if errors.As(readErr, &netErr) && netErr.Timeout() {
			return "", ErrReadTimeout
		}
		if errors.Is(readErr, os.ErrDeadlineExceeded) {
			return "", ErrReadTimeout
		}
		return "", readErr
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine writes a line with a trailing newline appended.
func (c *LineConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, writeErr := c.conn.Write([]byte(line + "\n"))
	return writeErr
}

func (c *LineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// RemoteIP returns the bare peer address, without port.
func (c *LineConn) RemoteIP() string {
	addr := c.conn.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	host, _, splitErr := net.SplitHostPort(addr.String())
	if splitErr != nil {
		return addr.String()
	}
	return host
}

func (c *LineConn) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Conn exposes the underlying connection for raw byte copying after the
// line-oriented phases are over.
func (c *LineConn) Conn() net.Conn {
	return c.conn
}

// Buffered exposes the shared buffered reader for raw copying that must not
// lose read-ahead bytes.
func (c *LineConn) Buffered() *bufio.Reader {
	return c.reader
}
