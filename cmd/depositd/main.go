package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkade-os/depositd/internal/config"
	httpservice "github.com/arkade-os/depositd/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "depositd"
	app.Usage = "Tracks the total amount locked in deposits at every block height"
	app.UsageText = "Run the deposit index daemon, or use its subcommands to query and manage it"
	app.Flags = config.Flags
	app.Action = mainAction
	app.Commands = append(app.Commands,
		infoCmd,
		pushCmd,
		applyCmd,
		popCmd,
		rollbackCmd,
		amountCmd,
		checkpointCmd,
		snapshotCmd,
	)

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func mainAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	if cfg.LogLevel >= int(log.DebugLevel) {
		log.SetReportCaller(true)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log.Debugf("config: %s", cfg)

	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}

	svc, err := httpservice.NewService(httpservice.Config{
		Port:            cfg.Port,
		MetricsHandler:  cfg.MetricsHandler(),
		MaxSnapshotSize: cfg.MaxSnapshotSize,
	}, appSvc)
	if err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}
