package bthost

import "github.com/pkg/errors"

// Host errors reported by the GAP layer. HCI status codes are reported as
// hci.ErrCommand values instead, possibly wrapped.
var (
	ErrCanceled           = errors.New("canceled")
	ErrFailed             = errors.New("failed")
	ErrTimedOut           = errors.New("timed out")
	ErrNotSupported       = errors.New("not supported")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrNotFound           = errors.New("not found")
	ErrInProgress         = errors.New("in progress")
	ErrNotReady           = errors.New("not ready")
	ErrParametersRejected = errors.New("parameters rejected")
	ErrLinkDisconnected   = errors.New("link disconnected")
)

// IsCanceled reports whether err was caused by ErrCanceled.
func IsCanceled(err error) bool {
	return err != nil && errors.Cause(err) == ErrCanceled
}

// IsTimedOut reports whether err was caused by ErrTimedOut.
func IsTimedOut(err error) bool {
	return err != nil && errors.Cause(err) == ErrTimedOut
}
