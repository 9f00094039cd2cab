// +build linux

// Package socket opens a Linux HCI User Channel, which gives the host
// exclusive, raw access to a controller that the kernel stack has released.
package socket

import (
	"io"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"golang.org/x/sys/unix"
)

var logger = bthost.ComponentLogger("hci-socket")

const (
	typHCI        = 72 // 'H'
	ioctlSize     = 4
	hciMaxDevices = 16

	pollReadTimeoutMs  = 1000
	pollFlushTimeoutMs = 20
	openRetryTimeout   = 60 * time.Second
	openRetryInterval  = time.Second

	pollErrors = int16(unix.POLLHUP | unix.POLLNVAL | unix.POLLERR)
	pollIn     = int16(unix.POLLIN)
)

func ioctlR(nr uintptr) uintptr { return 2<<30 | typHCI<<8 | nr | ioctlSize<<16 }
func ioctlW(nr uintptr) uintptr { return 1<<30 | typHCI<<8 | nr | ioctlSize<<16 }

var (
	hciDevDown    = ioctlW(202) // HCIDEVDOWN
	hciGetDevList = ioctlR(210) // HCIGETDEVLIST
)

func ioctl(fd int, op, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), op, arg); errno != 0 {
		return errno
	}
	return nil
}

type devListRequest struct {
	count   uint16
	devices [hciMaxDevices]struct {
		id  uint16
		opt uint32
	}
}

// poll waits up to timeoutMs for fd to become readable and returns the
// reported events.
func poll(fd int, timeoutMs int) int16 {
	pfds := []unix.PollFd{{Fd: int32(fd), Events: pollIn}}
	unix.Poll(pfds, timeoutMs)
	return pfds[0].Revents
}

// Socket is an HCI User Channel. Reads time out after a second and return
// zero bytes so that a reader can notice Close.
type Socket struct {
	fd int

	rmu sync.Mutex
	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewSocket binds to hci<id>, retrying while the device is busy. With id
// -1 the first device that can be bound is used.
func NewSocket(id int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(err, "can't create socket")
	}

	var s *Socket
	if id >= 0 {
		s, err = bindWithRetry(fd, id)
	} else {
		s, err = bindFirst(fd)
	}
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func bindWithRetry(fd, id int) (*Socket, error) {
	deadline := time.Now().Add(openRetryTimeout)
	for {
		s, err := bind(fd, id)
		if err == nil {
			return s, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(err, "hci%d", id)
		}
		logger.Debugf("hci%d: %v, retrying", id, err)
		time.Sleep(openRetryInterval)
	}
}

func bindFirst(fd int) (*Socket, error) {
	req := devListRequest{count: hciMaxDevices}
	if err := ioctl(fd, hciGetDevList, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, errors.Wrap(err, "can't get device list")
	}
	var failures []string
	for i := 0; i < int(req.count); i++ {
		id := int(req.devices[i].id)
		s, err := bind(fd, id)
		if err == nil {
			return s, nil
		}
		failures = append(failures, errors.Wrapf(err, "hci%d", id).Error())
	}
	return nil, errors.Errorf("no devices available: %s", strings.Join(failures, "; "))
}

// bind takes hci<id> down, which the user channel requires, and binds fd
// to it. Anything the controller sent before the bind is discarded.
func bind(fd, id int) (*Socket, error) {
	if err := ioctl(fd, hciDevDown, uintptr(id)); err != nil {
		return nil, errors.Wrap(err, "can't down device")
	}
	sa := unix.SockaddrHCI{Dev: uint16(id), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, &sa); err != nil {
		return nil, errors.Wrap(err, "can't bind socket to hci user channel")
	}

	evts := poll(fd, pollFlushTimeoutMs)
	if evts&pollErrors != 0 {
		return nil, io.EOF
	}
	if evts&pollIn != 0 {
		stale := make([]byte, 2048)
		unix.Read(fd, stale)
	}
	logger.Infof("bound to hci%d", id)
	return &Socket{fd: fd, done: make(chan struct{})}, nil
}

func (s *Socket) Read(p []byte) (int, error) {
	if s.closed() {
		return 0, io.EOF
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()

	evts := poll(s.fd, pollReadTimeoutMs)
	switch {
	case evts&pollErrors != 0:
		logger.Errorf("poll events 0x%04x", evts)
		return 0, io.EOF
	case evts&pollIn == 0:
		return 0, nil
	}

	n, err := unix.Read(s.fd, p)
	if s.closed() {
		return 0, io.EOF
	}
	return n, errors.Wrap(err, "can't read hci socket")
}

func (s *Socket) Write(p []byte) (int, error) {
	if s.closed() {
		return 0, io.EOF
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := unix.Write(s.fd, p)
	return n, errors.Wrap(err, "can't write hci socket")
}

// Close releases the device. It waits for a pending Read to time out.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		logger.Info("closing hci socket")
		s.rmu.Lock()
		s.closeErr = errors.Wrap(unix.Close(s.fd), "can't close hci socket")
		s.rmu.Unlock()
	})
	return s.closeErr
}

func (s *Socket) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
