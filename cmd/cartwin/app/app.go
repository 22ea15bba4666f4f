package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/cartwin/cmd/cartwin/app/options"
	"github.com/autopeer-io/cartwin/pkg/app"
	"github.com/autopeer-io/cartwin/pkg/log"
)

const (
	commandName = "cartwin"
	commandDesc = `cartwin ingests OBD-II telemetry published by vehicle adapters over MQTT,
keeps a live per-vehicle state with recent history and liveness, persists it
at a bounded rate and streams every update to live subscribers over websocket.`
)

func NewApp() *app.App {
	opts := options.NewTwinOptions()
	application := app.NewApp(
		commandName,
		"Run the vehicle telemetry pipeline",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithSubCommands(newPIDsCommand(), newMigrateCommand()),
	)
	return application
}

func run(opts *options.TwinOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		log.Init(opts.Log)
		defer log.Sync()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log.Info("Loaded configuration", "config", cfg.String())

		server, err := cfg.NewTwinServer()
		if err != nil {
			return fmt.Errorf("failed to create twin server: %w", err)
		}

		return server.Run(ctx)
	}
}
