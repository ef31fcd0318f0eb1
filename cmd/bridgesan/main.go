// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package main

import (
	"os"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli"

	"github.com/torproject/bridgesan"
	"github.com/torproject/bridgesan/config"
)

const usage = `bridgesan sanitizes raw Tor bridge descriptors for public archival`

func main() {
	app := cli.NewApp()
	app.Name = "bridgesan"
	app.Usage = usage

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "set log level to debug",
		},
		cli.StringFlag{
			Name:  "local-origins",
			Usage: "input tarball directory",
		},
		cli.StringFlag{
			Name:  "output-path",
			Usage: "long-term archive root",
		},
		cli.StringFlag{
			Name:  "recent-path",
			Usage: "short-term mirror root",
		},
		cli.StringFlag{
			Name:  "stats-path",
			Usage: "directory for the secrets store and parsed-archives list",
		},
		cli.BoolFlag{
			Name:  "replace-ip-with-hashes",
			Usage: "hash IPv4/IPv6/port values instead of replacing them with fixed sentinels",
		},
		cli.IntFlag{
			Name:  "mappings-limit",
			Usage: "days after which a monthly secret is no longer persisted; negative disables expiry",
			Value: -1,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		if ctx.Bool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		cfg := config.Config{
			BridgeLocalOrigins:            ctx.String("local-origins"),
			OutputPath:                    ctx.String("output-path"),
			RecentPath:                    ctx.String("recent-path"),
			StatsPath:                     ctx.String("stats-path"),
			ReplaceIpAddressesWithHashes:  ctx.Bool("replace-ip-with-hashes"),
			BridgeDescriptorMappingsLimit: ctx.Int("mappings-limit"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return bridgesan.Run(cfg, time.Now())
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("bridgesan: %v", err)
	}
}
