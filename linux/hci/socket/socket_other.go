// +build !linux

package socket

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
)

// Socket is only available on linux.
type Socket struct{}

func NewSocket(id int) (*Socket, error) {
	return nil, errors.Wrap(bthost.ErrNotSupported, "hci user channel")
}

func (s *Socket) Read(p []byte) (int, error)  { return 0, bthost.ErrNotSupported }
func (s *Socket) Write(p []byte) (int, error) { return 0, bthost.ErrNotSupported }
func (s *Socket) Close() error                { return nil }
