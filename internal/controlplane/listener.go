package controlplane

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenTCP opens a TCP listener with SO_REUSEADDR set before bind, so a
// restarted process can rebind a port still draining TIME_WAIT connections
// from the previous instance. net.Listen alone does not expose this socket
// option portably; net.ListenConfig.Control is the escape hatch.
func listenTCP(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

// noDelayListener wraps a TCP listener so every accepted connection gets
// TCP_NODELAY, disabling Nagle's algorithm: chat streaming writes small
// chunks frequently, and batching them at the TCP layer would undo the
// gateway's own micro-batching policy.
type noDelayListener struct {
	net.Listener
}

func (l noDelayListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// listen opens addr as a TCP listener with SO_REUSEADDR and per-connection
// TCP_NODELAY applied.
func listen(ctx context.Context, addr string) (net.Listener, error) {
	ln, err := listenTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	return noDelayListener{ln}, nil
}
