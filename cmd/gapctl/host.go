package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/bondstore"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/gap"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/controller"
	"github.com/urfave/cli"
)

// host is a running GAP stack. Fields other than loop and store are only
// touched on the loop.
type host struct {
	loop  *dispatch.Loop
	ctrl  *controller.Controller
	store bondstore.Store

	cache          *gap.PeerCache
	addrs          *gap.LowEnergyAddressManager
	discovery      *gap.LowEnergyDiscovery
	leConnector    *hci.LowEnergyConnector
	leInterrogator *gap.LowEnergyInterrogator
	bredr          *gap.BrEdrConnectionManager

	logger bthost.Logger
}

func startHost(c *cli.Context) (*host, error) {
	tp, err := transportOption(c)
	if err != nil {
		return nil, err
	}
	store, err := openStore(c)
	if err != nil {
		return nil, err
	}
	serveMetrics(c)

	h := &host{
		loop:   dispatch.NewLoop(),
		store:  store,
		logger: bthost.ComponentLogger("gapctl"),
	}
	h.ctrl, err = controller.New(h.loop, tp, controller.OptErrorHandler(func(err error) {
		h.logger.Errorf("controller failed: %v", err)
	}))
	if err != nil {
		h.close()
		return nil, err
	}
	if err := h.ctrl.Start(); err != nil {
		h.close()
		return nil, err
	}

	initialized := make(chan error, 1)
	h.loop.Post(func() { h.ctrl.Initialize(func(err error) { initialized <- err }) })
	select {
	case err = <-initialized:
	case <-h.ctrl.Done():
		err = h.ctrl.Err()
	}
	if err != nil {
		h.close()
		return nil, errors.Wrap(err, "initialize controller")
	}

	h.loop.Sync(func() { err = h.build() })
	if err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

// build wires the GAP components on the loop.
func (h *host) build() error {
	var err error
	h.cache, err = gap.NewPeerCache(h.loop)
	if err != nil {
		return err
	}
	restored, skipped, err := bondstore.Restore(h.store, h.cache)
	if err != nil {
		return errors.Wrap(err, "restore bonds")
	}
	h.logger.Infof("restored %d bonds (%d skipped)", restored, skipped)
	bondstore.Persist(h.store, h.cache)
	h.cache.SetPeerRemovedCallback(func(id bthost.PeerID) {
		h.logger.Debugf("peer %v removed", id)
	})

	public := h.ctrl.Addr()
	h.addrs = gap.NewLowEnergyAddressManager(public.Alias(), func() bool {
		return !h.discovery.Scanning() && !h.leConnector.RequestPending()
	}, h.ctrl, h.loop)
	h.discovery = gap.NewLowEnergyDiscovery(h.cache, h.addrs, h.ctrl, h.loop)
	h.leConnector = hci.NewLowEnergyConnector(h.ctrl, h.loop, h.addrs, func(link *hci.Connection) {
		h.logger.Infof("refusing LE connection from %v", link.PeerAddress())
		link.Close()
	})
	h.leInterrogator = gap.NewLowEnergyInterrogator(h.cache, h.ctrl, h.loop)

	h.bredr, err = gap.NewBrEdrConnectionManager(h.cache, public, h.ctrl, h.loop)
	return err
}

// wait blocks until done delivers, the context ends, or the controller
// goes away.
func (h *host) wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	case <-h.ctrl.Done():
		return h.ctrl.Err()
	}
}

func (h *host) close() {
	if h.ctrl != nil {
		h.loop.Sync(func() {
			if h.bredr != nil {
				h.bredr.Close()
			}
			if h.leConnector != nil {
				h.leConnector.Close()
			}
			if h.discovery != nil {
				h.discovery.Close()
			}
			if h.leInterrogator != nil {
				h.leInterrogator.Close()
			}
		})
		h.ctrl.Close()
	}
	h.loop.Stop()
	if err := h.store.Close(); err != nil {
		h.logger.Warnf("closing bond store: %v", err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
