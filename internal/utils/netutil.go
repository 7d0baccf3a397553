package utils

import (
	"context"
	"net"
	"strconv"
	"time"
)

// CheckPortConnectable reports whether something accepts TCP connections on localhost:port
func CheckPortConnectable(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// BindPort binds port with SO_REUSEADDR off and releases it right away, returning the bind error
func BindPort(port int) error {
	lc := net.ListenConfig{Control: disableReuseAddr}
	l, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(bindHost, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return l.Close()
}

// IsPortInUse is true only when another socket holds the port. EACCES and friends are not "in use".
func IsPortInUse(port int) bool {
	return isAddrInUse(BindPort(port))
}

// IsPrivilegedPort reports ports that need elevated privileges to bind on unix hosts
func IsPrivilegedPort(port int) bool {
	return port > 0 && port < 1024
}
