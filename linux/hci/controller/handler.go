package controller

import (
	"fmt"

	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/evt"
)

func (c *Controller) handlePacket(b []byte) {
	if !c.isOpen() || len(b) == 0 {
		return
	}
	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case hci.PktTypeEvent:
		if err := c.handleEvent(b); err != nil {
			c.logger.Warnf("event: %v", err)
		}
	case hci.PktTypeACLData, hci.PktTypeSCOData:
		// data channels are owned by L2CAP and the SCO data path
		c.logger.Debugf("dropping data packet 0x%02X (%d bytes)", t, len(b))
	case hci.PktTypeVendor:
		c.logger.Debugf("unsupported vendor packet: % X", b)
	default:
		c.logger.Warnf("invalid packet: 0x%02X % X", t, b)
	}
}

func (c *Controller) handleEvent(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("short event packet: % X", b)
	}
	code, plen := hci.EventCode(b[0]), int(b[1])
	params := b[2:]
	if plen != len(params) {
		return fmt.Errorf("invalid event packet: % X", b)
	}

	switch code {
	case hci.CommandCompleteCode:
		return c.handleCommandComplete(params)
	case hci.CommandStatusCode:
		return c.handleCommandStatus(params)
	case hci.LEMetaCode:
		if len(params) == 0 {
			return fmt.Errorf("empty LE meta event")
		}
		c.deliver(&hci.Event{Code: hci.LEMetaEventCode(params[0]), Params: params[1:]})
	case hci.VendorCode:
		// Ignore vendor events
	default:
		c.deliver(&hci.Event{Code: code, Params: params})
	}
	return nil
}

func (c *Controller) handleCommandComplete(b []byte) error {
	e := evt.CommandComplete(b)
	if len(e) < 3 {
		return fmt.Errorf("invalid command complete: % X", b)
	}
	c.credits = int(e.NumHCICommandPackets())
	defer c.trySend()

	// NOP command, used for flow control purpose [Vol 2, Part E, 4.4]
	op := int(e.CommandOpcode())
	if op == 0x0000 {
		return nil
	}
	t := c.awaitingStatus(op)
	if t == nil {
		return fmt.Errorf("can't find the cmd for command complete: % X", b)
	}
	t.statusSeen = true
	c.remove(t)
	if t.cb != nil {
		t.cb(t.id, &hci.Event{Code: hci.CommandCompleteCode, Opcode: op, Params: e.ReturnParameters()})
	}
	return nil
}

func (c *Controller) handleCommandStatus(b []byte) error {
	e := evt.CommandStatus(b)
	if !e.Valid() {
		return fmt.Errorf("invalid command status: % X", b)
	}
	c.credits = int(e.NumHCICommandPackets())
	defer c.trySend()

	op := int(e.CommandOpcode())
	if op == 0x0000 {
		return nil
	}
	t := c.awaitingStatus(op)
	if t == nil {
		return fmt.Errorf("can't find the cmd for command status: % X", b)
	}
	t.statusSeen = true
	if t.timeout != nil {
		t.timeout.Cancel()
		t.timeout = nil
	}
	if e.Status() != 0x00 || !t.async() {
		c.remove(t)
	}
	if t.cb != nil {
		t.cb(t.id, &hci.Event{Code: hci.CommandStatusCode, Opcode: op, Params: []byte{e.Status()}})
	}
	return nil
}

// deliver routes e to the transaction it completes, if any, then to
// subscribers in subscription order.
func (c *Controller) deliver(e *hci.Event) {
	if t := c.awaitingEvent(e.Code); t != nil {
		c.remove(t)
		if t.cb != nil {
			t.cb(t.id, e)
		}
		defer c.trySend()
	}

	var subs []subscription
	for _, s := range c.handlers {
		if s.code == e.Code {
			subs = append(subs, s)
		}
	}
	for _, s := range subs {
		// A handler may remove others while running.
		if c.subscribed(s.id) {
			s.fn(e)
		}
	}
}

// AddEventHandler implements hci.CommandChannel.
func (c *Controller) AddEventHandler(code hci.EventCode, h hci.EventHandler) hci.EventHandlerID {
	c.nextHandler++
	c.handlers = append(c.handlers, subscription{id: c.nextHandler, code: code, fn: h})
	return c.nextHandler
}

// RemoveEventHandler implements hci.CommandChannel.
func (c *Controller) RemoveEventHandler(id hci.EventHandlerID) {
	for i, s := range c.handlers {
		if s.id == id {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return
		}
	}
}

func (c *Controller) subscribed(id hci.EventHandlerID) bool {
	for _, s := range c.handlers {
		if s.id == id {
			return true
		}
	}
	return false
}
