// Command gapctl drives the GAP layer against a real controller: it scans,
// connects over LE or BR/EDR, pairs, and manages the stored bonds.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/bondstore"
	"github.com/rigado/bthost/linux/hci/controller"
	"github.com/rigado/bthost/linux/hci/h4"
	"github.com/urfave/cli"
)

var transportFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "device",
		Value: -1,
		Usage: "hci index",
	},
	cli.StringFlag{
		Name:  "h4s",
		Usage: "h4 socket server address",
	},
	cli.StringFlag{
		Name:  "h4u",
		Usage: "h4 uart",
	},
	cli.StringFlag{
		Name:  "metrics",
		Usage: "serve Prometheus metrics on this address, e.g. :9100",
	},
}

var holdFlag = cli.DurationFlag{
	Name:  "hold",
	Value: 10 * time.Second,
	Usage: "how long to keep the link before disconnecting",
}

func main() {
	app := cli.NewApp()
	app.Name = "gapctl"
	app.Usage = "exercise the bthost GAP layer on a Bluetooth controller"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "bonds",
			Value: "bonds.json",
			Usage: "bond storage path",
		},
		cli.StringFlag{
			Name:  "store",
			Value: "file",
			Usage: "bond storage backend: file or leveldb",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "error, warn, info, debug or trace",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "log everything",
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("verbose") {
			bthost.SetLogLevelMax()
			return nil
		}
		return bthost.SetLogLevel(c.String("log-level"))
	}
	app.Commands = []cli.Command{
		cli.Command{
			Name:  "scan",
			Usage: "Discover LE peers",
			Flags: append([]cli.Flag{
				cli.DurationFlag{
					Name:  "duration, d",
					Value: 10 * time.Second,
					Usage: "scan duration",
				},
				cli.BoolFlag{
					Name:  "passive",
					Usage: "do not send scan requests",
				},
			}, transportFlags...),
			Action: scanCommand,
		},
		cli.Command{
			Name:      "le-connect",
			Usage:     "Connect to an LE peer and interrogate it",
			ArgsUsage: "<address>",
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  "random",
					Usage: "the address is an LE random address",
				},
				holdFlag,
			}, transportFlags...),
			Action: leConnectCommand,
		},
		cli.Command{
			Name:      "bredr-connect",
			Usage:     "Connect to a BR/EDR peer, optionally pairing",
			ArgsUsage: "<address>",
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  "pair",
					Usage: "authenticate and encrypt the link",
				},
				holdFlag,
			}, transportFlags...),
			Action: brEdrConnectCommand,
		},
		cli.Command{
			Name:   "bonds",
			Usage:  "List stored bonds",
			Action: bondsCommand,
		},
		cli.Command{
			Name:      "forget",
			Usage:     "Delete a stored bond",
			ArgsUsage: "<peer id>",
			Action:    forgetCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func transportOption(c *cli.Context) (controller.Option, error) {
	switch {
	case c.Int("device") >= 0:
		return controller.OptTransportHCISocket(c.Int("device")), nil
	case c.String("h4s") != "":
		return controller.OptTransportH4Socket(c.String("h4s"), 2*time.Second), nil
	case c.String("h4u") != "":
		return controller.OptTransportH4Uart(c.String("h4u"), h4.DefaultSerialOptions().BaudRate), nil
	}
	return nil, cli.NewExitError("no transport: use --device, --h4s or --h4u", 2)
}

func openStore(c *cli.Context) (bondstore.Store, error) {
	path := c.GlobalString("bonds")
	switch c.GlobalString("store") {
	case "file":
		return bondstore.NewFileStore(path), nil
	case "leveldb":
		return bondstore.OpenLevelStore(path)
	}
	return nil, cli.NewExitError(fmt.Sprintf("unknown store %q", c.GlobalString("store")), 2)
}

func serveMetrics(c *cli.Context) {
	addr := c.String("metrics")
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			bthost.GetLogger().Errorf("metrics server: %v", err)
		}
	}()
}
