package controller

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
)

const (
	eventMask   = 0x3dbff807fffbffff
	leEventMask = 0x000000000000021F // includes LE Enhanced Connection Complete
)

// Initialize resets the controller and configures the event masks, LE host
// support and Secure Simple Pairing. cb runs once on the dispatcher.
func (c *Controller) Initialize(cb func(error)) {
	steps := []struct {
		name string
		cmd  hci.Command
		rp   hci.CommandRP
	}{
		{"reset", &cmd.Reset{}, nil},
		{"read bdaddr", &cmd.ReadBDADDR{}, &cmd.ReadBDADDRRP{}},
		{"set event mask", &cmd.SetEventMask{EventMask: eventMask}, nil},
		{"le set event mask", &cmd.LESetEventMask{LEEventMask: leEventMask}, nil},
		{"write le host support", &cmd.WriteLEHostSupport{LESupportedHost: 1, SimultaneousLEHost: 0}, nil},
		{"write simple pairing mode", &cmd.WriteSimplePairingMode{SimplePairingMode: 1}, nil},
	}

	var next func(i int)
	next = func(i int) {
		if i == len(steps) {
			c.logger.Infof("hci initialized, bdaddr %v", c.addr)
			cb(nil)
			return
		}
		s := steps[i]
		c.logger.Debugf("hci %s", s.name)
		c.SendCommand(s.cmd, func(_ hci.TransactionID, e *hci.Event) {
			if err := e.Err(); err != nil {
				cb(errors.Wrap(err, s.name))
				return
			}
			if s.rp != nil {
				if err := s.rp.Unmarshal(e.Params); err != nil {
					cb(errors.Wrap(err, s.name))
					return
				}
			}
			if rp, ok := s.rp.(*cmd.ReadBDADDRRP); ok {
				c.addr = bthost.DeviceAddress{Type: bthost.AddressBREDR, Value: rp.BDADDR}
			}
			next(i + 1)
		}, hci.CommandCompleteCode)
	}
	next(0)
}
