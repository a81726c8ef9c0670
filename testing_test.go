package flagrelay

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// createListener starts a TCP server on a random port and runs handler for
// every accepted connection. It returns the listen address.
func createListener(t testing.TB, handler func(conn net.Conn)) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test server: %v", err)
	}

	t.Cleanup(func() {
		listener.Close()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				if handler != nil {
					handler(c)
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

// refusedAddr returns an address that refuses connections: the listener is
// closed before any client dials it.
func refusedAddr(t testing.TB) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

// lineResponder answers every received line with the given response.
func lineResponder(response string) func(conn net.Conn) {
	return func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
			if _, err := conn.Write([]byte(response)); err != nil {
				return
			}
		}
	}
}

// silentHandler accepts and never writes, holding the connection open.
func silentHandler(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// sendAndClose writes payload and closes the connection.
func sendAndClose(payload string) func(conn net.Conn) {
	return func(conn net.Conn) {
		_, _ = conn.Write([]byte(payload))
	}
}

// testConfig returns a config suitable for fast tests: no connect retries,
// short timeouts.
func testConfig(servers ...string) Config {
	return Config{
		Servers:              servers,
		ConnectTimeout:       2 * time.Second,
		ReadTimeout:          2 * time.Second,
		ConnectRetryCount:    -1,
		ConnectRetryInterval: 10 * time.Millisecond,
		RetryCount:           2,
	}
}
