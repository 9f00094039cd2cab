package controller

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost/linux/hci/h4"
	"github.com/rigado/bthost/linux/hci/socket"
)

// An Option is a configuration function, which configures the controller.
type Option func(*Controller) error

// OptCommandTimeout bounds the wait for Command Status or Command Complete.
// A command that times out shuts the controller down.
func OptCommandTimeout(d time.Duration) Option {
	return func(c *Controller) error {
		if d <= 0 {
			return errors.Errorf("invalid command timeout %v", d)
		}
		c.cmdTimeout = d
		return nil
	}
}

// OptErrorHandler sets the handler for fatal transport errors.
func OptErrorHandler(handler func(error)) Option {
	return func(c *Controller) error {
		c.errorHandler = handler
		return nil
	}
}

// OptTransport uses an already open transport.
func OptTransport(rwc io.ReadWriteCloser) Option {
	return func(c *Controller) error {
		c.rwc = rwc
		return nil
	}
}

// OptTransportHCISocket sets the HCI user channel device. -1 selects the
// first available device.
func OptTransportHCISocket(id int) Option {
	return func(c *Controller) error {
		c.tp = transport{hci: &transportHci{id}}
		return nil
	}
}

// OptTransportH4Socket sets an h4 socket server.
func OptTransportH4Socket(addr string, timeout time.Duration) Option {
	return func(c *Controller) error {
		c.tp = transport{h4socket: &transportH4Socket{addr, timeout}}
		return nil
	}
}

// OptTransportH4Uart sets an h4 uart path.
func OptTransportH4Uart(path string, baud uint) Option {
	return func(c *Controller) error {
		c.tp = transport{h4uart: &transportH4Uart{path, baud}}
		return nil
	}
}

type transportHci struct {
	id int
}

type transportH4Socket struct {
	addr    string
	timeout time.Duration
}

type transportH4Uart struct {
	path string
	baud uint
}

type transport struct {
	hci      *transportHci
	h4uart   *transportH4Uart
	h4socket *transportH4Socket
}

func (t transport) open() (io.ReadWriteCloser, error) {
	switch {
	case t.hci != nil:
		s, err := socket.NewSocket(t.hci.id)
		if err != nil {
			return nil, err
		}
		return s, nil

	case t.h4socket != nil:
		return h4.NewSocket(t.h4socket.addr, t.h4socket.timeout)

	case t.h4uart != nil:
		so := h4.DefaultSerialOptions()
		so.PortName = t.h4uart.path
		if t.h4uart.baud != 0 {
			so.BaudRate = t.h4uart.baud
		}
		return h4.NewSerial(so)

	default:
		return nil, errors.New("no valid transport found")
	}
}
