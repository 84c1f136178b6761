package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConnReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	lc := NewLineConn(server)
	go func() {
		_, _ = client.Write([]byte("uci\r\nisready\n"))
	}()

	line, readErr := lc.ReadLine(time.Second)
	require.NoError(t, readErr)
	assert.Equal(t, "uci", line, "CRLF must be stripped")

	line, readErr = lc.ReadLine(time.Second)
	require.NoError(t, readErr)
	assert.Equal(t, "isready", line)

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := client.Read(buf)
		done <- string(buf[:n])
	}()
	require.NoError(t, lc.WriteLine("readyok"))
	assert.Equal(t, "readyok\n", <-done)
}

func TestLineConnReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	lc := NewLineConn(server)
	_, readErr := lc.ReadLine(20 * time.Millisecond)
	assert.ErrorIs(t, readErr, ErrReadTimeout)
}

func TestLineConnPreservesReadAhead(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	lc := NewLineConn(server)
	go func() {
		// Both lines arrive in one segment; the second must survive in the
		// shared buffered reader.
		_, _ = client.Write([]byte("AUTH secret\nposition startpos\n"))
	}()

	first, firstErr := lc.ReadLine(time.Second)
	require.NoError(t, firstErr)
	assert.Equal(t, "AUTH secret", first)

	second, secondErr := lc.ReadLine(time.Second)
	require.NoError(t, secondErr)
	assert.Equal(t, "position startpos", second)
}

func TestLineConnCloseIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	lc := NewLineConn(server)
	lc.Close()
	lc.Close()
}

func TestLineConnRemoteIP(t *testing.T) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, listenErr)
	defer listener.Close()

	go func() {
		conn, _ := net.Dial("tcp", listener.Addr().String())
		if conn != nil {
			defer conn.Close()
			time.Sleep(50 * time.Millisecond)
		}
	}()

	conn, acceptErr := listener.Accept()
	require.NoError(t, acceptErr)
	lc := NewLineConn(conn)
	defer lc.Close()

	assert.Equal(t, "127.0.0.1", lc.RemoteIP(), "port must be stripped")
}
