//go:build !windows

package utils

import (
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPortInUse(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	err = BindPort(port)
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EADDRINUSE)
	assert.True(t, IsPortInUse(port))

	require.NoError(t, l.Close())
	assert.NoError(t, BindPort(port))
	assert.False(t, IsPortInUse(port))
}

func TestIsAddrInUseOnlyMatchesAddrInUse(t *testing.T) {
	bindErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", errno)}
	}

	assert.False(t, isAddrInUse(nil))
	assert.False(t, isAddrInUse(bindErr(syscall.EACCES)))
	assert.False(t, isAddrInUse(bindErr(syscall.EADDRNOTAVAIL)))
	assert.True(t, isAddrInUse(bindErr(syscall.EADDRINUSE)))
}
