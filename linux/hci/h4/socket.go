package h4

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// NewSocket connects to an H4 server over TCP.
func NewSocket(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v", addr)
	}
	logger.Infof("connected to h4 server %v", addr)
	return newH4(&connWithTimeout{c: c, timeout: timeout}), nil
}
