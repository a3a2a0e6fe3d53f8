package transport

import (
	"net"
	"time"

	"github.com/rafaelcarvalho/fireelect/pkg/election/definition"

	"github.com/pkg/errors"
)

// BindAndListen binds and listens on addr. Failure is fatal and wrapped as
// definition.ErrBind.
func BindAndListen(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(definition.ErrBind, "resolve %s: %v", addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, errors.Wrapf(definition.ErrBind, "listen %s: %v", addr, err)
	}
	return listener, nil
}

// AcceptWithTimeout accepts a single connection, returning (nil, nil) after
// timeout elapses with nothing pending. This is the mechanism by which the
// acceptor loop periodically checks the shutdown flag instead of blocking
// forever in Accept.
func AcceptWithTimeout(listener *net.TCPListener, timeout time.Duration) (net.Conn, error) {
	if err := listener.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrap(definition.ErrIO, err.Error())
	}
	conn, err := listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

// Dial opens an outbound TCP connection to addr. Transient failures are not
// retried; the caller (the connection manager) surfaces the wrapped error
// and aborts.
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(definition.ErrDial, "dial %s: %v", addr, err)
	}
	return conn, nil
}
