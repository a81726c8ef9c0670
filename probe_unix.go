//go:build unix

package flagrelay

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// probeConn peeks at the receive queue without consuming application data.
// Nothing pending means the connection is assumed alive; a pending EOF or
// any probe error means it is not.
func probeConn(conn net.Conn) bool {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return true
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false
	}

	alive := true
	ctrlErr := raw.Control(func(fd uintptr) {
		var buf [1]byte
		n, _, err := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case err == nil && n == 0:
			// Orderly shutdown from the peer.
			alive = false
		case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK):
			alive = true
		case err != nil:
			alive = false
		}
	})
	return ctrlErr == nil && alive
}
