package h4

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestFrameSplitEvent(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)

	// Command Complete for Reset, split in three.
	f.Assemble([]byte{0x04, 0x0e})
	f.Assemble([]byte{0x04, 0x01, 0x03})
	assert.Empty(t, drain(c))
	f.Assemble([]byte{0x0c, 0x00})

	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x04, 0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00}, got[0])
}

func TestFrameMultiplePackets(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)

	f.Assemble([]byte{
		0xAA, // garbage before the first indicator
		0x04, 0x05, 0x04, 0x00, 0x40, 0x00, 0x13,
		0x02, 0x40, 0x20, 0x02, 0x00, 0x01, 0x02,
		0x04, 0x0f,
	})
	got := drain(c)
	require.Len(t, got, 2)
	assert.Equal(t, byte(0x04), got[0][0])
	assert.Len(t, got[0], 7)
	assert.Equal(t, []byte{0x02, 0x40, 0x20, 0x02, 0x00, 0x01, 0x02}, got[1])

	f.Assemble([]byte{0x04, 0x00, 0x01, 0x05, 0x04})
	got = drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x04, 0x0f, 0x04, 0x00, 0x01, 0x05, 0x04}, got[0])
}

func TestFrameStaleDropped(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)
	now := time.Unix(1000, 0)
	f.now = func() time.Time { return now }

	f.Assemble([]byte{0x04, 0x0e, 0x04, 0x01})
	now = now.Add(time.Second)
	f.Assemble([]byte{0x04, 0x13, 0x01, 0x00})

	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x04, 0x13, 0x01, 0x00}, got[0])
}
