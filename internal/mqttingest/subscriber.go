// Package mqttingest feeds readings published on an MQTT broker into the ingestion
// pipeline.
package mqttingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"home-sensor-backend/config"
	"home-sensor-backend/internal/ingest"
	"home-sensor-backend/internal/sensor"
)

const (
	source         = "mqtt"
	keepAlive      = 30
	reconnectDelay = 5 * time.Second
)

// Ingester consumes decoded readings.
type Ingester interface {
	Ingest(ctx context.Context, source string, r sensor.Reading) (ingest.Result, error)
}

// Subscriber receives readings from topics such as home/rooms/+/readings. A payload
// without an id takes the room id from the topic segment matched by the wildcard.
type Subscriber struct {
	address  string
	clientID string
	topic    string
	ingester Ingester

	readyOnce sync.Once
	ready     chan struct{}
}

// New creates a subscriber from the MQTT configuration.
func New(cfg config.MQTTConfig, ing Ingester) (*Subscriber, error) {
	addr, err := brokerAddress(cfg.Broker)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		address:  addr,
		clientID: cfg.ClientID,
		topic:    cfg.Topic,
		ingester: ing,
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once the first subscription is acknowledged.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run keeps a session to the broker open until ctx is cancelled, reconnecting after
// failures.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("mqtt session ended, reconnecting", "broker", s.address, "err", err, "delay", reconnectDelay)
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.address, err)
	}

	// Client errors and server disconnects both end the session.
	lost := make(chan error, 1)
	var lostOnce sync.Once
	markLost := func(err error) {
		lostOnce.Do(func() { lost <- err })
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: s.clientID,
		Conn:     conn,
		OnClientError: func(err error) {
			markLost(err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			markLost(fmt.Errorf("server disconnect, reason code %d", d.ReasonCode))
		},
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pub paho.PublishReceived) (bool, error) {
				s.handle(ctx, pub.Packet.Topic, pub.Packet.Payload)
				return true, nil
			},
		},
	})

	if _, err := client.Connect(ctx, &paho.Connect{
		ClientID:   s.clientID,
		KeepAlive:  keepAlive,
		CleanStart: true,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("connect: %w", err)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: s.topic, QoS: 1}},
	}); err != nil {
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	slog.Info("mqtt subscriber connected", "broker", s.address, "topic", s.topic)
	s.readyOnce.Do(func() { close(s.ready) })

	select {
	case <-ctx.Done():
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return ctx.Err()
	case err := <-lost:
		conn.Close()
		return fmt.Errorf("connection lost: %w", err)
	}
}

func (s *Subscriber) handle(ctx context.Context, topic string, payload []byte) {
	var r sensor.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		slog.Warn("invalid mqtt reading", "topic", topic, "err", err)
		return
	}
	if r.RoomID == "" {
		r.RoomID = roomIDFromTopic(s.topic, topic)
	}
	if _, err := s.ingester.Ingest(ctx, source, r); err != nil {
		slog.Warn("mqtt reading rejected", "topic", topic, "err", err)
	}
}

// roomIDFromTopic returns the topic level matched by the first single-level wildcard
// in filter.
func roomIDFromTopic(filter, topic string) string {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, level := range fl {
		if level == "+" && i < len(tl) {
			return tl[i]
		}
	}
	return ""
}

// brokerAddress accepts host:port or a tcp:// / mqtt:// URL.
func brokerAddress(broker string) (string, error) {
	if broker == "" {
		return "", fmt.Errorf("mqtt broker address is empty")
	}
	if !strings.Contains(broker, "://") {
		return broker, nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("invalid mqtt broker %q: %w", broker, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", fmt.Errorf("unsupported mqtt scheme %q", u.Scheme)
	}
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "1883"), nil
	}
	return u.Host, nil
}
