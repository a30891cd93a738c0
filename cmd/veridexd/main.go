package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/veridex-io/veridexd/internal/config"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "veridexd",
		Usage:   "compliance validation daemon for tokenized assets",
		Version: version,
		Flags:   config.Flags,
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to wire services: %s", err)
	}

	log.Infof("veridexd config: %+v", cfg)

	sweeper := cfg.Sweeper()
	log.Info("starting service...")
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %s", err)
	}

	log.RegisterExitHandler(func() {
		sweeper.Stop()
		cfg.RepoManager().Close()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
