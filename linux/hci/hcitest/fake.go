// Package hcitest provides an in-memory hci.CommandChannel that records
// commands and lets tests play the controller.
package hcitest

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/rigado/bthost/linux/hci"
)

// Transaction is one command sent through a FakeChannel.
type Transaction struct {
	ID         hci.TransactionID
	Command    hci.Command
	Complete   hci.EventCode
	Exclusions []int

	cb   hci.CommandCallback
	done bool
}

// Opcode of the transaction's command.
func (t *Transaction) Opcode() int {
	return t.Command.OpCode()
}

// Done reports whether the controller side has finished the transaction.
func (t *Transaction) Done() bool {
	return t.done
}

type handler struct {
	code hci.EventCode
	fn   hci.EventHandler
}

// FakeChannel implements hci.CommandChannel. Callbacks run synchronously
// inside the methods that deliver events.
type FakeChannel struct {
	sent     []*Transaction
	handlers map[hci.EventHandlerID]handler
	nextTx   hci.TransactionID
	nextH    hci.EventHandlerID

	// AutoStatus, when set, answers every asynchronous command with a
	// successful Command Status as soon as it is sent.
	AutoStatus bool
}

func New() *FakeChannel {
	return &FakeChannel{handlers: map[hci.EventHandlerID]handler{}}
}

func (f *FakeChannel) SendCommand(c hci.Command, cb hci.CommandCallback, complete hci.EventCode) hci.TransactionID {
	return f.SendExclusiveCommand(c, cb, complete)
}

func (f *FakeChannel) SendExclusiveCommand(c hci.Command, cb hci.CommandCallback, complete hci.EventCode, exclusions ...int) hci.TransactionID {
	f.nextTx++
	t := &Transaction{ID: f.nextTx, Command: c, Complete: complete, Exclusions: exclusions, cb: cb}
	f.sent = append(f.sent, t)
	if f.AutoStatus && complete != hci.CommandCompleteCode {
		f.Status(t, 0x00)
	}
	return t.ID
}

func (f *FakeChannel) AddEventHandler(code hci.EventCode, h hci.EventHandler) hci.EventHandlerID {
	f.nextH++
	f.handlers[f.nextH] = handler{code: code, fn: h}
	return f.nextH
}

func (f *FakeChannel) RemoveEventHandler(id hci.EventHandlerID) {
	delete(f.handlers, id)
}

// HandlerCount reports the number of live subscriptions for code.
func (f *FakeChannel) HandlerCount(code hci.EventCode) int {
	n := 0
	for _, h := range f.handlers {
		if h.code == code {
			n++
		}
	}
	return n
}

// Sent returns every transaction in send order.
func (f *FakeChannel) Sent() []*Transaction {
	return f.sent
}

// Find returns the transactions whose command has the given opcode.
func (f *FakeChannel) Find(opcode int) []*Transaction {
	var out []*Transaction
	for _, t := range f.sent {
		if t.Opcode() == opcode {
			out = append(out, t)
		}
	}
	return out
}

// Pending returns the oldest unfinished transaction for opcode, or nil.
func (f *FakeChannel) Pending(opcode int) *Transaction {
	for _, t := range f.sent {
		if t.Opcode() == opcode && !t.done {
			return t
		}
	}
	return nil
}

// Last returns the most recent transaction, or nil.
func (f *FakeChannel) Last() *Transaction {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// Reset forgets recorded transactions, keeping subscriptions.
func (f *FakeChannel) Reset() {
	f.sent = nil
}

func (f *FakeChannel) deliver(t *Transaction, e *hci.Event) {
	if t.done {
		panic(fmt.Sprintf("event for finished transaction %d (opcode 0x%04x)", t.ID, t.Opcode()))
	}
	if t.cb != nil {
		t.cb(t.ID, e)
	}
}

// Status answers t with a Command Status. A failed status, or a command
// completed by Command Status, finishes the transaction.
func (f *FakeChannel) Status(t *Transaction, status uint8) {
	e := &hci.Event{Code: hci.CommandStatusCode, Opcode: t.Opcode(), Params: []byte{status}}
	if status != 0x00 || t.Complete == hci.CommandStatusCode {
		defer func() { t.done = true }()
	}
	f.deliver(t, e)
}

// CommandComplete answers t with Command Complete carrying the return
// parameters rp (status first).
func (f *FakeChannel) CommandComplete(t *Transaction, rp ...byte) {
	e := &hci.Event{Code: hci.CommandCompleteCode, Opcode: t.Opcode(), Params: rp}
	defer func() { t.done = true }()
	f.deliver(t, e)
}

// Complete delivers the asynchronous completion event of t, then routes
// the same event to subscribers.
func (f *FakeChannel) Complete(t *Transaction, params ...byte) {
	e := &hci.Event{Code: t.Complete, Params: params}
	t.done = true
	if t.cb != nil {
		t.cb(t.ID, e)
	}
	f.dispatch(e)
}

// Inject routes an unsolicited event to subscribers.
func (f *FakeChannel) Inject(code hci.EventCode, params ...byte) {
	f.dispatch(&hci.Event{Code: code, Params: params})
}

func (f *FakeChannel) dispatch(e *hci.Event) {
	ids := make([]hci.EventHandlerID, 0, len(f.handlers))
	for id, h := range f.handlers {
		if h.code == e.Code {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		// A handler may remove others while running.
		if h, ok := f.handlers[id]; ok {
			h.fn(e)
		}
	}
}

// Handle encodes a connection handle the way events carry it.
func Handle(h uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, h)
	return b
}

// Join concatenates event parameter fragments.
func Join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
