// Package controller implements hci.CommandChannel over an HCI transport.
package controller

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
)

const (
	defaultCommandTimeout = 10 * time.Second
	readBufferSize        = 4096
)

// Controller owns an HCI transport. Commands are flow controlled by the
// controller's command credits. Apart from Start and Close, its methods
// must be called on the dispatcher it was created with, and every
// callback runs there.
type Controller struct {
	d      dispatch.Dispatcher
	rwc    io.ReadWriteCloser
	tp     transport
	logger bthost.Logger

	cmdTimeout   time.Duration
	errorHandler func(error)

	credits int
	nextTx  hci.TransactionID
	queue   []*transaction
	sent    []*transaction

	nextHandler hci.EventHandlerID
	handlers    []subscription

	addr bthost.DeviceAddress

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

type subscription struct {
	id   hci.EventHandlerID
	code hci.EventCode
	fn   hci.EventHandler
}

// New returns a Controller. The transport is opened by Start unless one
// was supplied with OptTransport.
func New(d dispatch.Dispatcher, opts ...Option) (*Controller, error) {
	c := &Controller{
		d:          d,
		cmdTimeout: defaultCommandTimeout,
		credits:    1,
		done:       make(chan struct{}),
		logger:     bthost.ComponentLogger("hci"),
	}
	if err := c.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}
	return c, nil
}

// Option sets the options specified.
func (c *Controller) Option(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// Start opens the transport and begins reading packets.
func (c *Controller) Start() error {
	if c.rwc == nil {
		rwc, err := c.tp.open()
		if err != nil {
			return errors.Wrap(err, "can't open transport")
		}
		c.rwc = rwc
	}
	go c.readLoop()
	return nil
}

// Addr returns the public address read during Initialize.
func (c *Controller) Addr() bthost.DeviceAddress {
	return c.addr
}

// Done is closed when the controller has shut down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the controller shut down, if any.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close shuts the transport down. Outstanding commands are abandoned
// without callbacks.
func (c *Controller) Close() error {
	return c.close(nil)
}

func (c *Controller) close(reason error) error {
	var err error
	c.closeOnce.Do(func() {
		c.err = reason
		close(c.done)
		if c.rwc != nil {
			err = c.rwc.Close()
		}
		c.d.Post(c.cleanup)
	})
	return err
}

func (c *Controller) cleanup() {
	for _, t := range c.sent {
		if t.timeout != nil {
			t.timeout.Cancel()
		}
	}
	c.queue = nil
	c.sent = nil
	c.handlers = nil
}

func (c *Controller) isOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// fail reports a fatal error and shuts the controller down.
func (c *Controller) fail(err error) {
	if !c.isOpen() {
		c.logger.Debugf("hci closing: %v", err)
		return
	}
	c.logger.Errorf("hci failed: %v", err)
	if c.errorHandler != nil {
		c.errorHandler(err)
	}
	c.close(err)
}

func (c *Controller) readLoop() {
	defer c.logger.Debug("read loop done")

	b := make([]byte, readBufferSize)
	for {
		n, err := c.rwc.Read(b)
		switch {
		case n == 0 && err == nil:
			// read timeout
			if !c.isOpen() {
				return
			}
			continue

		case err == io.EOF:
			c.d.Post(func() { c.fail(io.EOF) })
			return

		case err != nil:
			if !c.isOpen() {
				return
			}
			err = errors.Wrap(err, "read error")
			c.d.Post(func() { c.fail(err) })
			return
		}

		p := make([]byte, n)
		copy(p, b)
		c.d.Post(func() { c.handlePacket(p) })
	}
}
