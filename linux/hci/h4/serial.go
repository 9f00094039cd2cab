package h4

import (
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

// DefaultSerialOptions returns the UART settings used by most HCI modules.
func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		BaudRate:              1000000,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		RTSCTSFlowControl:     true,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

// NewSerial opens an H4 UART.
func NewSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	logger.Infof("opening %v", opts.PortName)
	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}

	// Flush whatever the controller had queued before we attached.
	b := make([]byte, 2048)
	if _, err := sp.Write([]byte{commandPacket, 0x03, 0x0c, 0x00}); err != nil { // HCI Reset
		sp.Close()
		return nil, errors.Wrap(err, "can't write reset")
	}
	<-time.After(250 * time.Millisecond)
	if _, err := sp.Read(b); err != nil && err != io.EOF {
		sp.Close()
		return nil, errors.Wrap(err, "can't flush")
	}

	return newH4(sp), nil
}
