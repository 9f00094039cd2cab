// Package h4 frames HCI packets carried over a UART or a TCP stream using
// the H4 packet indicator.
package h4

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
)

const (
	commandPacket = 0x01
	aclPacket     = 0x02
	scoPacket     = 0x03
	eventPacket   = 0x04

	rxQueueSize = 64
	readTimeout = time.Second
)

var logger = bthost.ComponentLogger("h4")

type h4 struct {
	rwc io.ReadWriteCloser
	wmu sync.Mutex

	frame   *frame
	rxQueue chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newH4(rwc io.ReadWriteCloser) *h4 {
	h := &h4{
		rwc:     rwc,
		rxQueue: make(chan []byte, rxQueueSize),
		done:    make(chan struct{}),
	}
	h.frame = newFrame(h.rxQueue)
	go h.rxLoop()
	return h
}

// Read returns one complete packet. It returns 0, nil if nothing arrived
// within the read timeout.
func (h *h4) Read(p []byte) (int, error) {
	select {
	case <-h.done:
		return 0, io.EOF
	case t := <-h.rxQueue:
		if len(p) < len(t) {
			return 0, errors.Errorf("buffer too small (%d < %d)", len(p), len(t))
		}
		n := copy(p, t)
		logger.Debugf("read [% X]", p[:n])
		return n, nil
	case <-time.After(readTimeout):
		return 0, nil
	}
}

func (h *h4) Write(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	n, err := h.rwc.Write(p)
	logger.Debugf("write [% X], %v, %v", p, n, err)
	return n, errors.Wrap(err, "can't write h4")
}

func (h *h4) Close() error {
	var err error
	h.closeOnce.Do(func() {
		logger.Info("closing h4")
		close(h.done)
		err = errors.Wrap(h.rwc.Close(), "can't close h4")
	})
	return err
}

func (h *h4) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *h4) rxLoop() {
	tmp := make([]byte, 512)
	for {
		n, err := h.rwc.Read(tmp)
		if !h.isOpen() {
			return
		}
		switch {
		case err == io.EOF:
			logger.Warn("h4 transport closed by remote")
			h.Close()
			return
		case err != nil:
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Errorf("h4 read: %v", err)
			h.Close()
			return
		case n == 0:
			continue
		}
		h.frame.Assemble(tmp[:n])
	}
}
