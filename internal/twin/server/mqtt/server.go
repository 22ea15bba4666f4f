package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/cartwin/pkg/log"
	pkgmqtt "github.com/autopeer-io/cartwin/pkg/mqtt"
	"github.com/autopeer-io/cartwin/pkg/options"
)

const disconnectTimeout = 5 * time.Second

// Server implements the MQTT ingress layer. Every message on the telemetry
// topic filter is passed to the handler in the order the broker delivered it.
type Server struct {
	client  pkgmqtt.Client
	filter  string
	qos     int
	handler pkgmqtt.MessageHandler
}

// NewServer creates a new MQTT ingress server.
func NewServer(client pkgmqtt.Client, opts *options.MqttOptions, handler pkgmqtt.MessageHandler) *Server {
	return &Server{
		client:  client,
		filter:  opts.TopicPattern,
		qos:     int(opts.QoS),
		handler: handler,
	}
}

// Start connects to the broker, subscribes and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// Non-blocking; reconnects are handled by the client.
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")

	if err := s.client.Subscribe(ctx, s.filter, s.qos, s.handler); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", s.filter, err)
	}
	log.Info("Subscribed to telemetry", "filter", s.filter, "qos", s.qos)

	<-ctx.Done()
	return nil
}

// Ready reports whether the broker connection is up.
func (s *Server) Ready() bool {
	return s.client.IsConnected()
}
