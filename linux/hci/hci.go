// Package hci holds the host side of the Host Controller Interface used by
// the GAP layer: the command channel contract, command and event
// definitions, logical links and the LE connection procedure.
package hci

import (
	"encoding/binary"
	"fmt"
)

// Command is an HCI command packet payload.
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP is the return parameters of a command carried by Command Complete.
type CommandRP interface {
	Unmarshal(b []byte) error
}

// Event is a received HCI event. For Command Complete, Params holds only
// the return parameters, for LE Meta subevents the subevent octet is
// stripped, so that a status octet, when present, is always Params[0].
type Event struct {
	Code   EventCode
	Opcode int // set for Command Complete and Command Status
	Params []byte
}

// Status returns the first parameter octet.
func (e *Event) Status() uint8 {
	if len(e.Params) == 0 {
		return 0xFF
	}
	return e.Params[0]
}

// Err returns nil if the event reports success, otherwise the status as an
// ErrCommand.
func (e *Event) Err() error {
	if len(e.Params) == 0 {
		return fmt.Errorf("event 0x%04x has no status", uint16(e.Code))
	}
	return ToError(e.Params[0])
}

// Handle returns the little-endian connection handle at offset 1, the
// position used by every "...Complete" event keyed by handle.
func (e *Event) Handle() (uint16, bool) {
	if len(e.Params) < 3 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(e.Params[1:]) & 0x0FFF, true
}

// TransactionID identifies a command sent through a CommandChannel.
type TransactionID uint64

// EventHandlerID identifies a subscription made with AddEventHandler.
type EventHandlerID uint64

// CommandCallback receives the events generated for one command. For
// commands completed by an asynchronous event it is called with the Command
// Status first and, if the status was success, with the completion event.
type CommandCallback func(id TransactionID, e *Event)

// EventHandler receives events matching a subscription.
type EventHandler func(e *Event)

// CommandChannel sends commands to the controller and routes events back.
// All callbacks run on the dispatcher the channel was created with.
type CommandChannel interface {
	// SendCommand queues c. complete names the event ending the transaction:
	// CommandCompleteCode, CommandStatusCode, or an asynchronous event code.
	SendCommand(c Command, cb CommandCallback, complete EventCode) TransactionID

	// SendExclusiveCommand is SendCommand, except that c is not sent while
	// a command with any of the exclusions opcodes is pending, and none of
	// those are sent while c is pending.
	SendExclusiveCommand(c Command, cb CommandCallback, complete EventCode, exclusions ...int) TransactionID

	AddEventHandler(code EventCode, h EventHandler) EventHandlerID
	RemoveEventHandler(id EventHandlerID)
}

// StatusCallback adapts a func(error) into a CommandCallback for commands
// that complete with Command Status or Command Complete.
func StatusCallback(f func(err error)) CommandCallback {
	if f == nil {
		return nil
	}
	return func(_ TransactionID, e *Event) {
		f(e.Err())
	}
}
