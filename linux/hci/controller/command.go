package controller

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
)

type transaction struct {
	id         hci.TransactionID
	cmd        hci.Command
	cb         hci.CommandCallback
	complete   hci.EventCode
	exclusions []int

	statusSeen bool
	timeout    dispatch.Task
}

func (t *transaction) opcode() int {
	return t.cmd.OpCode()
}

// async reports whether an event other than Command Status or Command
// Complete ends the transaction.
func (t *transaction) async() bool {
	return t.complete != hci.CommandCompleteCode && t.complete != hci.CommandStatusCode
}

func (t *transaction) excludes(opcode int) bool {
	for _, o := range t.exclusions {
		if o == opcode {
			return true
		}
	}
	return false
}

// SendCommand implements hci.CommandChannel.
func (c *Controller) SendCommand(cmd hci.Command, cb hci.CommandCallback, complete hci.EventCode) hci.TransactionID {
	return c.SendExclusiveCommand(cmd, cb, complete)
}

// SendExclusiveCommand implements hci.CommandChannel.
func (c *Controller) SendExclusiveCommand(cmd hci.Command, cb hci.CommandCallback, complete hci.EventCode,
	exclusions ...int) hci.TransactionID {
	if !c.isOpen() {
		c.logger.Warnf("dropping %v: hci closed", cmd)
		return 0
	}
	c.nextTx++
	t := &transaction{
		id:         c.nextTx,
		cmd:        cmd,
		cb:         cb,
		complete:   complete,
		exclusions: exclusions,
	}
	c.queue = append(c.queue, t)
	c.trySend()
	return t.id
}

// canSend reports whether t may go out given the commands in flight. Only
// one command per asynchronous completion event is outstanding at a time,
// so completions can be matched without a handle.
func (c *Controller) canSend(t *transaction) bool {
	for _, s := range c.sent {
		if s.excludes(t.opcode()) || t.excludes(s.opcode()) {
			return false
		}
		if t.async() && s.complete == t.complete {
			return false
		}
	}
	return true
}

func (c *Controller) trySend() {
	remaining := c.queue[:0]
	for i, t := range c.queue {
		if c.credits <= 0 {
			remaining = append(remaining, c.queue[i:]...)
			break
		}
		if !c.canSend(t) {
			remaining = append(remaining, t)
			continue
		}
		if err := c.write(t); err != nil {
			c.fail(err)
			return
		}
	}
	c.queue = remaining
}

func (c *Controller) write(t *transaction) error {
	b := make([]byte, 4+t.cmd.Len())
	b[0] = hci.PktTypeCommand // HCI header
	b[1] = byte(t.opcode())
	b[2] = byte(t.opcode() >> 8)
	b[3] = byte(t.cmd.Len())
	if err := t.cmd.Marshal(b[4:]); err != nil {
		return errors.Wrapf(err, "can't marshal %v", t.cmd)
	}

	c.logger.Debugf("cmd: % X", b)
	if n, err := c.rwc.Write(b); err != nil {
		return errors.Wrap(err, "can't send cmd")
	} else if n != len(b) {
		return errors.Errorf("short cmd write %d/%d", n, len(b))
	}

	c.credits--
	c.sent = append(c.sent, t)
	t.timeout = c.d.PostAfter(c.cmdTimeout, func() {
		c.fail(errors.Wrapf(bthost.ErrTimedOut, "no response to %v", t.cmd))
	})
	return nil
}

func (c *Controller) remove(t *transaction) {
	for i, s := range c.sent {
		if s == t {
			c.sent = append(c.sent[:i], c.sent[i+1:]...)
			break
		}
	}
	if t.timeout != nil {
		t.timeout.Cancel()
	}
}

// awaitingStatus returns the oldest in-flight transaction for opcode that has
// not seen Command Status or Command Complete.
func (c *Controller) awaitingStatus(opcode int) *transaction {
	for _, t := range c.sent {
		if t.opcode() == opcode && !t.statusSeen {
			return t
		}
	}
	return nil
}

// awaitingEvent returns the in-flight transaction ended by code.
func (c *Controller) awaitingEvent(code hci.EventCode) *transaction {
	for _, t := range c.sent {
		if t.statusSeen && t.complete == code {
			return t
		}
	}
	return nil
}
