package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/lowbac/core/decoder"
	"github.com/kilianp07/lowbac/core/model"
	coremon "github.com/kilianp07/lowbac/core/monitoring"
	"github.com/kilianp07/lowbac/core/report"
	"github.com/kilianp07/lowbac/infra/logger"
)

// EventHandler receives every event decoded from the signal topic.
type EventHandler func(ev model.Event)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client receives signal events from the IoT broker and publishes reported
// command statuses. It implements report.Notifier.
type Client struct {
	cli     pahoClient
	cfg     Config
	handler EventHandler
	log     logger.Logger
}

// NewClient connects to the broker. When cfg.SignalTopic is set, decoded
// events are passed to handler; the subscription is renewed on reconnect.
func NewClient(cfg Config, handler EventHandler) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_client")
	c := &Client{cfg: cfg, handler: handler, log: log}

	opts.OnConnect = func(pc paho.Client) {
		log.Infof("MQTT connected")
		if cfg.SignalTopic == "" || handler == nil {
			return
		}
		if token := pc.Subscribe(cfg.SignalTopic, cfg.qos("signal"), c.onSignal); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.SignalTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

func (c *Client) onSignal(_ paho.Client, msg paho.Message) {
	ev, err := c.decode(msg.Payload())
	if err != nil {
		c.log.Warnf("drop message on %s: %v", msg.Topic(), err)
		return
	}
	c.handler(ev)
}

func (c *Client) decode(payload []byte) (model.Event, error) {
	if c.cfg.Encoding == EncodingJSON {
		return decoder.ParseEvent(payload)
	}
	return decoder.Decode(string(payload))
}

// StatusTopic returns the topic a status for vehicleID is published on.
func (c *Client) StatusTopic(vehicleID string) string {
	if vehicleID == "" {
		vehicleID = "unknown"
	}
	return fmt.Sprintf("%s/%s", c.cfg.StatusPrefix, vehicleID)
}

// Notify publishes st on the vehicle status topic. It is a no-op without a
// status prefix.
func (c *Client) Notify(ctx context.Context, st report.Status) error {
	if c.cfg.StatusPrefix == "" {
		return nil
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	topic := c.StatusTopic(st.VehicleID)
	token := c.cli.Publish(topic, c.cfg.qos("status"), c.cfg.StatusRetain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "vehicle_id": st.VehicleID})
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.log.Debugf("published status %s to %s", st.Outcome, topic)
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
