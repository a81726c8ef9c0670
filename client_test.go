package flagrelay

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_NoServers(t *testing.T) {
	_, err := NewClient(Config{})
	require.ErrorIs(t, err, ErrNoServers)
}

func TestConnect_OrderedFailover(t *testing.T) {
	// First candidate refuses, second accepts: Connect must succeed on the
	// second with exactly one classified failure behind it.
	down := refusedAddr(t)
	up := createListener(t, silentHandler)

	client, err := NewClient(testConfig(down, up))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, up, client.CurrentServer())
	assert.False(t, client.Closed())
}

func TestConnect_AllCandidatesDown(t *testing.T) {
	first := refusedAddr(t)
	last := refusedAddr(t)

	_, err := NewClient(testConfig(first, last))
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	// The last candidate's failure is the one reported.
	assert.Equal(t, last, connErr.Server)
	assert.True(t, IsRetryable(err))
}

func TestConnect_SelectorFuncNoFallback(t *testing.T) {
	down := refusedAddr(t)
	up := createListener(t, silentHandler)

	cfg := testConfig(down, up)
	cfg.Selector = SelectorFunc(func(candidates []string) string {
		return candidates[0]
	})

	// The custom selector picked the dead server; no fallback to the live one.
	_, err := NewClient(cfg)
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, down, connErr.Server)
}

func TestConnect_RebuildsConnection(t *testing.T) {
	addr := createListener(t, silentHandler)

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	first := client.conn
	require.NoError(t, client.Connect())
	assert.NotSame(t, first, client.conn, "Connect must replace the socket wholesale")
}

func TestConnect_OnConnectHook(t *testing.T) {
	addr := createListener(t, sendAndClose("banner line\n"))

	var hookRuns atomic.Int32
	cfg := testConfig(addr)
	cfg.OnConnect = func(c *Client) error {
		hookRuns.Add(1)
		line, err := c.ReadLine(0)
		if err != nil {
			return err
		}
		if string(line) != "banner line\n" {
			return errors.New("unexpected banner")
		}
		return nil
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, int32(1), hookRuns.Load())
}

func TestConnect_OnConnectHookFailurePropagates(t *testing.T) {
	addr := createListener(t, silentHandler)

	hookErr := errors.New("handshake rejected")
	cfg := testConfig(addr)
	cfg.OnConnect = func(c *Client) error { return hookErr }

	_, err := NewClient(cfg)
	require.ErrorIs(t, err, hookErr)
}

func TestConnect_RetriesSameCandidate(t *testing.T) {
	addr := refusedAddr(t)

	cfg := testConfig(addr)
	cfg.ConnectRetryCount = 2
	cfg.ConnectRetryInterval = 5 * time.Millisecond

	start := time.Now()
	_, err := NewClient(cfg)
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	// Two retries means two sleeps before giving up.
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWrite_DeliversBytes(t *testing.T) {
	received := make(chan string, 1)
	addr := createListener(t, func(conn net.Conn) {
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	})

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Write([]byte("FLAG{abc}\n")))

	select {
	case got := <-received:
		assert.Equal(t, "FLAG{abc}\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the write")
	}
}

func TestWrite_Closed(t *testing.T) {
	addr := createListener(t, silentHandler)

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	client.Close()

	err = client.Write([]byte("x"))
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRead_ExactLength(t *testing.T) {
	addr := createListener(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("0123456789"))
		silentHandler(conn)
	})

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	buf, err := client.Read(10, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(buf))
}

func TestRead_ShortReadEscalates(t *testing.T) {
	addr := createListener(t, sendAndClose("0123"))

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Read(10, 0)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, io.EOF, "short read must carry an EOF cause")
}

func TestReadEager_PartialOnEOF(t *testing.T) {
	addr := createListener(t, sendAndClose("0123"))

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	buf, err := client.ReadEager(10, 0)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "0123", string(buf), "partial bytes stay inspectable")
}

func TestReadEager_AccumulatesAcrossChunks(t *testing.T) {
	addr := createListener(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("01234"))
		time.Sleep(20 * time.Millisecond)
		_, _ = conn.Write([]byte("56789"))
		silentHandler(conn)
	})

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	buf, err := client.ReadEager(10, 0)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
}

func TestRead_TimeoutLeavesSocketOpen(t *testing.T) {
	addr := createListener(t, silentHandler)

	cfg := testConfig(addr)
	cfg.CloseOnError = false

	client, err := NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	start := time.Now()
	_, err = client.Read(10, 200*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *ReadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, client.Closed(), "socket must stay open when CloseOnError is off")
}

func TestRead_TimeoutClosesWithCloseOnError(t *testing.T) {
	addr := createListener(t, silentHandler)

	cfg := testConfig(addr)
	cfg.CloseOnError = true

	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Read(1, 50*time.Millisecond)
	var timeoutErr *ReadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, client.Closed())
}

func TestWriteReadLine_Exchange(t *testing.T) {
	addr := createListener(t, lineResponder("Accepted\n"))

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Write([]byte("FLAG{n}\n")))
		line, err := client.ReadLine(0)
		require.NoError(t, err)
		assert.Equal(t, "Accepted\n", string(line))
	}
}

func TestReadLine_ThenEOF(t *testing.T) {
	addr := createListener(t, sendAndClose("OK\n"))

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	line, err := client.ReadLine(0)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(line), "line includes the separator")

	line, err = client.ReadLine(0)
	require.ErrorIs(t, err, io.EOF)
	assert.Empty(t, line)
}

func TestReadLine_EOFKeepsPartial(t *testing.T) {
	addr := createListener(t, sendAndClose("truncated"))

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	line, err := client.ReadLine(0)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "truncated", string(line))
}

func TestReadLine_CloseOnEOF(t *testing.T) {
	addr := createListener(t, sendAndClose(""))

	cfg := testConfig(addr)
	cfg.CloseOnEOF = true

	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.ReadLine(0)
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, client.Closed())
}

func TestReadPartial_EagerUnderSharedDeadline(t *testing.T) {
	// A server that trickles bytes slower than the shared budget: ReadLine
	// must give up with a timeout instead of waiting per-byte.
	addr := createListener(t, func(conn net.Conn) {
		for {
			time.Sleep(100 * time.Millisecond)
			if _, err := conn.Write([]byte("x")); err != nil {
				return
			}
		}
	})

	cfg := testConfig(addr)
	client, err := NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	start := time.Now()
	_, err = client.ReadLine(250 * time.Millisecond)
	var timeoutErr *ReadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, time.Since(start), time.Second, "budget is shared, not per byte")
}

func TestAlive(t *testing.T) {
	serverConns := make(chan net.Conn, 1)
	addr := createListener(t, func(conn net.Conn) {
		serverConns <- conn
		silentHandler(conn)
	})

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.Alive())

	conn := <-serverConns
	conn.Close()

	require.Eventually(t, func() bool {
		return !client.Alive()
	}, 2*time.Second, 10*time.Millisecond, "a pending EOF must flip the probe")

	client.Close()
	assert.False(t, client.Alive())
}

func TestClose_Idempotent(t *testing.T) {
	addr := createListener(t, silentHandler)

	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)

	client.Close()
	require.NotPanics(t, func() { client.Close() })
	assert.True(t, client.Closed())
	assert.Empty(t, client.CurrentServer())
}
