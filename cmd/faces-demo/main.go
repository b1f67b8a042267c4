package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/config"
	"github.com/centraunit/faces/internal/logger"
	"github.com/centraunit/faces/internal/server"
	"github.com/centraunit/faces/session"
	"github.com/centraunit/faces/view"
	"github.com/centraunit/faces/viewscope"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr string
	var debug bool

	flagSet := pflag.NewFlagSet("faces-demo", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a yaml, toml or json config file")
	flagSet.StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	loggerCallback := logger.Init(logger.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Color: cfg.Log.Color})
	defer func() {
		_ = loggerCallback.Invoke(context.Background())
	}()
	logger.Debug("Application initializing...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := faces.NewApplication()
	container := faces.NewContainer()
	if err := container.RegisterScope(faces.ScopeView, viewscope.New()); err != nil {
		return err
	}
	if err := container.RegisterScope(faces.ScopeRequest, faces.NewRequestScope()); err != nil {
		return err
	}
	if err := server.RegisterBeans(container); err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.ErrorF("Container shutdown failed: %v", err)
		}
	}()

	views, err := view.NewHandler(cfg.View.NumberOfViews)
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.Session.MaxInactiveInterval, cfg.Session.ReaperInterval)
	// Ending every session on the way out runs the pending view scope
	// destruction callbacks.
	defer sessions.Close()
	go func() {
		_ = sessions.Run(ctx)
	}()

	return server.New(cfg, app, container, sessions, views).Run(ctx)
}
