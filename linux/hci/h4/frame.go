package h4

import (
	"time"

	"github.com/pkg/errors"
)

const frameTimeout = 500 * time.Millisecond

var errIncomplete = errors.New("incomplete frame")

// frame reassembles H4 packets from an arbitrary split of the byte stream.
// Bytes before a recognized packet indicator are discarded, as is a partial
// packet older than frameTimeout.
type frame struct {
	b       []byte
	started time.Time
	out     chan []byte
	now     func() time.Time
}

func newFrame(c chan []byte) *frame {
	return &frame{
		b:   make([]byte, 0, 256),
		out: c,
		now: time.Now,
	}
}

func (f *frame) Assemble(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(f.b) != 0 && f.now().Sub(f.started) > frameTimeout {
		logger.Debugf("dropping stale partial frame [% X]", f.b)
		f.reset()
	}

	if len(f.b) == 0 {
		i := start(b)
		if i < 0 {
			return
		}
		b = b[i:]
		f.started = f.now()
	}
	f.b = append(f.b, b...)

	for len(f.b) != 0 {
		n, err := f.length()
		if err != nil || len(f.b) < n {
			return
		}
		out := make([]byte, n)
		copy(out, f.b[:n])
		f.out <- out

		rem := f.b[n:]
		f.reset()
		if i := start(rem); i >= 0 {
			f.b = append(f.b, rem[i:]...)
			f.started = f.now()
		}
	}
}

func (f *frame) reset() {
	f.b = make([]byte, 0, 256)
	f.started = time.Time{}
}

// start returns the index of the first packet indicator in b, or -1.
func start(b []byte) int {
	for i, v := range b {
		switch v {
		case eventPacket, aclPacket, scoPacket:
			return i
		}
	}
	return -1
}

// length returns the total length of the packet at the head of the buffer,
// indicator included.
func (f *frame) length() (int, error) {
	switch f.b[0] {
	case eventPacket:
		// indicator, code, length
		if len(f.b) < 3 {
			return 0, errIncomplete
		}
		return 3 + int(f.b[2]), nil
	case aclPacket:
		// indicator, handle (2), length (2)
		if len(f.b) < 5 {
			return 0, errIncomplete
		}
		return 5 + (int(f.b[3]) | int(f.b[4])<<8), nil
	case scoPacket:
		// indicator, handle (2), length
		if len(f.b) < 4 {
			return 0, errIncomplete
		}
		return 4 + int(f.b[3]), nil
	default:
		return 0, errors.Errorf("invalid packet type 0x%02X", f.b[0])
	}
}
