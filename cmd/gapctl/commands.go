package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/gap"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/sm"
	"github.com/urfave/cli"
)

func scanCommand(c *cli.Context) error {
	h, err := startHost(c)
	if err != nil {
		return err
	}
	defer h.close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("duration"))
	defer cancel()
	ctx, stop := signalContext(ctx)
	defer stop()

	done := make(chan error, 1)
	var session gap.LowEnergyDiscoverySession
	h.loop.Post(func() {
		h.discovery.StartDiscovery(!c.Bool("passive"), func(s gap.LowEnergyDiscoverySession) {
			if s == nil {
				done <- errors.Wrap(bthost.ErrFailed, "start scanning")
				return
			}
			session = s
			s.SetResultCallback(printPeer)
			s.SetErrorCallback(func() { done <- errors.Wrap(bthost.ErrFailed, "scanning stopped") })
		})
	})
	fmt.Printf("Scanning for %s...\n", c.Duration("duration"))
	err = h.wait(ctx, done)
	h.loop.Sync(func() {
		if session != nil {
			session.Stop()
		}
	})
	return err
}

func printPeer(p *gap.Peer) {
	name, _ := p.Name()
	fmt.Printf("%v rssi %d %q connectable=%v bonded=%v\n", p, p.RSSI(), name, p.Connectable(), p.Bonded())
}

func parseAddressArg(c *cli.Context, t bthost.AddressType) (bthost.DeviceAddress, error) {
	if c.NArg() != 1 {
		return bthost.DeviceAddress{}, cli.NewExitError("expected one address", 2)
	}
	return bthost.ParseDeviceAddress(t, c.Args().First())
}

func leConnectCommand(c *cli.Context) error {
	t := bthost.AddressLEPublic
	if c.Bool("random") {
		t = bthost.AddressLERandom
	}
	addr, err := parseAddressArg(c, t)
	if err != nil {
		return err
	}
	h, err := startHost(c)
	if err != nil {
		return err
	}
	defer h.close()

	ctx, stop := signalContext(context.Background())
	defer stop()

	done := make(chan error, 1)
	var conn *gap.LowEnergyConnection
	var connector *gap.LowEnergyConnector
	h.loop.Post(func() {
		p := h.cache.FindByAddress(addr)
		if p == nil {
			p = h.cache.NewPeer(addr, true)
		}
		opts := gap.LowEnergyConnectionOptions{AutoConnect: p.Bonded()}
		connector = gap.NewOutboundLowEnergyConnector(p.ID(), opts, h.leConnector, h.discovery, h.leInterrogator, h.cache, h.loop,
			func(err error, lc *gap.LowEnergyConnection) {
				conn = lc
				done <- err
			})
	})
	fmt.Printf("Connecting to %v...\n", addr)
	if err := h.wait(ctx, done); err != nil {
		return err
	}

	var p *gap.Peer
	h.loop.Sync(func() {
		if conn == nil {
			connector.Cancel()
			return
		}
		p = h.cache.FindByID(conn.PeerID())
	})
	if p == nil {
		return nil
	}
	h.loop.Sync(func() { printInterrogation(p) })
	hold(ctx, c.Duration("hold"))
	h.loop.Sync(func() { conn.Disconnect(hci.ErrRemoteUser) })
	return nil
}

func brEdrConnectCommand(c *cli.Context) error {
	addr, err := parseAddressArg(c, bthost.AddressBREDR)
	if err != nil {
		return err
	}
	h, err := startHost(c)
	if err != nil {
		return err
	}
	defer h.close()

	ctx, stop := signalContext(context.Background())
	defer stop()

	done := make(chan error, 1)
	var conn *gap.BrEdrConnection
	h.loop.Post(func() {
		p := h.cache.FindByAddress(addr)
		if p == nil {
			p = h.cache.NewPeer(addr, true)
		}
		h.bredr.Connect(p.ID(), func(err error, bc *gap.BrEdrConnection) {
			conn = bc
			done <- err
		})
	})
	fmt.Printf("Connecting to %v...\n", addr)
	if err := h.wait(ctx, done); err != nil {
		return err
	}
	connected := false
	h.loop.Sync(func() {
		if conn != nil {
			connected = true
			printInterrogation(h.cache.FindByID(conn.PeerID()))
		}
	})
	if !connected {
		return nil
	}

	if c.Bool("pair") {
		paired := make(chan error, 1)
		h.loop.Post(func() {
			conn.Pairing().InitiatePairing(func(err error, props sm.SecurityProperties) {
				if err == nil {
					fmt.Printf("link secured: %v\n", props)
				}
				paired <- err
			})
		})
		if err := h.wait(ctx, paired); err != nil {
			return errors.Wrap(err, "pairing")
		}
	}

	hold(ctx, c.Duration("hold"))
	h.loop.Sync(func() { h.bredr.Disconnect(conn.PeerID(), hci.ErrRemoteUser) })
	return nil
}

func printInterrogation(p *gap.Peer) {
	if p == nil {
		return
	}
	name, _ := p.Name()
	fmt.Printf("connected to %v %q\n", p, name)
	if v, ok := p.Version(); ok {
		fmt.Printf("  version %d, manufacturer 0x%04x, subversion 0x%04x\n", v.Version, v.Manufacturer, v.Subversion)
	}
	if p.LE() != nil {
		if f, ok := p.LE().Features(); ok {
			fmt.Printf("  le features %016x\n", f)
		}
	}
	for page := uint8(0); page <= p.Features().LastPageNumber(); page++ {
		if bits, ok := p.Features().Page(page); ok {
			fmt.Printf("  lmp features page %d: %016x\n", page, bits)
		}
	}
}

func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	fmt.Printf("Holding the link for %s...\n", d)
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func bondsCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	bonds, err := store.Load()
	if err != nil {
		return err
	}
	for _, bd := range bonds {
		fmt.Printf("%v %v %q", bd.Identifier, bd.Address, bd.Name)
		if bd.LEPairingData.PeerLTK != nil || bd.LEPairingData.LocalLTK != nil {
			fmt.Print(" le")
		}
		if bd.BrEdrLinkKey != nil {
			fmt.Printf(" bredr(%v)", bd.BrEdrLinkKey.Security)
		}
		fmt.Println()
	}
	return nil
}

func forgetCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("expected one peer id", 2)
	}
	id, err := bthost.ParsePeerID(c.Args().First())
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Delete(id)
}
