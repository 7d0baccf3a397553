//go:build windows

package utils

import (
	"errors"
	"syscall"
)

const bindHost = "127.0.0.1"

// WSAEADDRINUSE, winsock reports it instead of syscall.EADDRINUSE
const wsaAddrInUse = syscall.Errno(10048)

func disableReuseAddr(_, _ string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 0)
	}); err != nil {
		return err
	}
	return serr
}

func isAddrInUse(err error) bool {
	return errors.Is(err, wsaAddrInUse) || errors.Is(err, syscall.EADDRINUSE)
}
