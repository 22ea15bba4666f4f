package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/cartwin/pkg/log"
	"github.com/autopeer-io/cartwin/pkg/mqtt/topic"
)

var errNotStarted = errors.New("mqtt client not started")

type pahoClient struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	connected atomic.Bool

	// filter -> subscriptionEntry
	subscriptions sync.Map
}

type subscriptionEntry struct {
	topic   string
	qos     int
	handler MessageHandler
}

// NewClient returns a Client backed by an autopaho connection manager.
// Nothing is dialed until Start.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}

	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{cfg: cfg}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	pahoCfg, err := c.connectionConfig()
	if err != nil {
		return err
	}

	log.Info("Connecting to MQTT broker", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("failed to start mqtt connection: %w", err)
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) connectionConfig() (autopaho.ClientConfig, error) {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return autopaho.ClientConfig{}, err
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectDelay),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.willMessage(),
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError:                c.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      c.onClientError,
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.router},
		},
	}

	if c.cfg.Debug {
		sink := log.WithName("mqtt").Logr()
		cfg.Debug = newPahoLogger(sink, "autopaho")
		cfg.PahoDebug = newPahoLogger(sink, "paho")
	}
	return cfg, nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		log.Warn("MQTT disconnect did not complete cleanly", "err", err)
	}
	c.connected.Store(false)
	log.Info("Disconnected from MQTT broker")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}

	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	// Registered before SUBSCRIBE so a reconnect in between still replays it.
	entry := subscriptionEntry{topic: filter, qos: qos, handler: handler}
	c.subscriptions.Store(filter, entry)

	if err := subscribe(ctx, c.cm, entry); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}
	log.Info("Subscribed", "filter", filter, "qos", qos)
	return nil
}

func subscribe(ctx context.Context, cm *autopaho.ConnectionManager, entry subscriptionEntry) error {
	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: entry.topic, QoS: byte(entry.qos)}},
	})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	log.Info("MQTT connection up")

	c.subscriptions.Range(func(_, value any) bool {
		entry := value.(subscriptionEntry)
		if err := subscribe(context.Background(), cm, entry); err != nil {
			log.Error(err, "Failed to restore subscription", "filter", entry.topic)
		}
		return true
	})
}

func (c *pahoClient) onConnectError(err error) {
	c.connected.Store(false)
	log.Error(err, "MQTT connect attempt failed, will retry", "broker", c.cfg.BrokerURL)
}

func (c *pahoClient) onClientError(err error) {
	c.connected.Store(false)
	log.Error(err, "MQTT connection lost")
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	var reason string
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT broker closed the connection", "reason", reason, "code", d.ReasonCode)
}

// router runs each matching handler inline on the paho reader, so messages of
// one connection reach handlers in the order the broker delivered them.
func (c *pahoClient) router(p paho.PublishReceived) (bool, error) {
	name, payload := p.Packet.Topic, p.Packet.Payload

	var matched bool
	c.subscriptions.Range(func(_, value any) bool {
		entry := value.(subscriptionEntry)
		if !topic.Match(topic.StripShare(entry.topic), name) {
			return true
		}
		matched = true
		entry.handler(context.Background(), name, payload)
		return true
	})

	if !matched {
		log.Debug("No handler for topic", "topic", name)
	}
	return true, nil
}

func (c *pahoClient) willMessage() *paho.WillMessage {
	if c.cfg.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.WillTopic,
		Payload: c.cfg.WillPayload,
		QoS:     c.cfg.WillQoS,
		Retain:  c.cfg.WillRetain,
	}
}
