// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command wsrpcd serves the object bus over websocket and static files over
// plain HTTP from the same port.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/luxfi/wsrpc"
	"github.com/luxfi/wsrpc/timeservice"
)

func main() {
	app := &cli.App{
		Name:  "wsrpcd",
		Usage: "websocket JSON-RPC object-bus server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "bind to this host",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8765,
				Usage: "bind to this port",
			},
			&cli.StringFlag{
				Name:  "htdocs",
				Usage: "http root (default: current directory)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "optional TOML config file; flags override it",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "zap log level (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := defaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = loadConfig(path); err != nil {
			return err
		}
	}
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("htdocs") {
		cfg.Htdocs = c.String("htdocs")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	server, err := wsrpc.Listen(addr,
		wsrpc.WithServerLogger(logger),
		wsrpc.WithStaticRoot(cfg.Htdocs),
	)
	if err != nil {
		return err
	}
	if err := server.RegisterInterface(timeservice.New()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("server listening",
		zap.String("url", "http://"+server.Addr()),
		zap.String("htdocs", cfg.Htdocs))

	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("server closed")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
