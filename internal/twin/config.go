package twin

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/twin/broadcast"
	"github.com/autopeer-io/cartwin/internal/twin/monitor"
	"github.com/autopeer-io/cartwin/internal/twin/persist"
	"github.com/autopeer-io/cartwin/internal/twin/pipeline"
	"github.com/autopeer-io/cartwin/internal/twin/server"
	"github.com/autopeer-io/cartwin/internal/twin/server/http"
	"github.com/autopeer-io/cartwin/internal/twin/server/mqtt"
	"github.com/autopeer-io/cartwin/internal/twin/state"
	"github.com/autopeer-io/cartwin/pkg/options"
)

type Config struct {
	MqttOptions      *options.MqttOptions
	HttpOptions      *options.HttpOptions
	TelemetryOptions *options.TelemetryOptions
	DirectoryOptions *options.DirectoryOptions
	StoreOptions     *options.StoreOptions
	PostgresOptions  *options.PostgresOptions
	S3Options        *options.S3Options
	RedisOptions     *options.RedisOptions
}

// NewTwinServer wires the ingestion pipeline and the servers around it.
func (cfg *Config) NewTwinServer() (*TwinServer, error) {
	clk := clock.RealClock{}
	res := &resources{}

	// 1. Infrastructure: directory and durable store (secondary adapters)
	dir, err := res.directory(cfg)
	if err != nil {
		res.close()
		return nil, err
	}
	writer, err := res.writer(cfg)
	if err != nil {
		res.close()
		return nil, err
	}

	// 2. Core: state, persistence, broadcast, liveness
	store := state.NewStore(clk, cfg.TelemetryOptions.HistorySize)
	gate := persist.NewGate(writer, clk, cfg.TelemetryOptions.PersistInterval, cfg.TelemetryOptions.PersistTimeout)
	hub := broadcast.NewHub(store, clk, cfg.TelemetryOptions.BroadcastQueue)
	mon, err := monitor.New(store, hub, clk, cfg.TelemetryOptions.CheckInterval, cfg.TelemetryOptions.SilenceTimeout)
	if err != nil {
		res.close()
		return nil, err
	}
	pipe := pipeline.New(pipeline.NewRouter(dir, cfg.TelemetryOptions.ResolveTimeout), store, gate, hub, clk)

	// 3. Ingress servers (primary adapters)
	mqttClient, err := InitializeMQTTClient(cfg.MqttOptions)
	if err != nil {
		res.close()
		return nil, err
	}
	mqttSrv := mqtt.NewServer(mqttClient, cfg.MqttOptions, pipe.Handle)
	httpSrv := http.NewServer(cfg.HttpOptions, store, hub)
	httpSrv.AddReadyCheck("mqtt", mqttSrv.Ready)

	manager := server.NewManager(
		server.Func(hub.Run),
		server.Func(mon.Run),
		mqttSrv,
		httpSrv,
	)
	for _, r := range res.runners {
		manager.Add(r)
	}

	return &TwinServer{
		serverManager: manager,
		resources:     res,
		store:         store,
		pipeline:      pipe,
	}, nil
}

func (cfg *Config) String() string {
	return fmt.Sprintf("directory=%s store=%s broker=%s http=%s",
		cfg.DirectoryOptions.Backend, cfg.StoreOptions.Backend, cfg.MqttOptions.Broker, cfg.HttpOptions.Addr)
}
