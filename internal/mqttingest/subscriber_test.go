package mqttingest

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-sensor-backend/config"
	"home-sensor-backend/internal/ingest"
	"home-sensor-backend/internal/sensor"
)

const mochiTCPPort = 18831

type recordingIngester struct {
	got chan sensor.Reading
}

func (r *recordingIngester) Ingest(ctx context.Context, source string, reading sensor.Reading) (ingest.Result, error) {
	r.got <- reading
	return ingest.Result{Accepted: true}, nil
}

// Spin up an in-process MQTT broker for testing.
func startBroker(t *testing.T) listeners.Config {
	cfg := listeners.Config{
		Type:    "tcp",
		Address: fmt.Sprintf("127.0.0.1:%d", mochiTCPPort),
	}
	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(cfg)))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })
	return cfg
}

func publisher(ctx context.Context, t *testing.T, cfg listeners.Config) *paho.Client {
	var d net.Dialer
	conn, err := d.DialContext(ctx, cfg.Type, cfg.Address)
	require.NoError(t, err)

	client := paho.NewClient(paho.ClientConfig{ClientID: "device-1", Conn: conn})
	_, err = client.Connect(ctx, &paho.Connect{ClientID: "device-1", KeepAlive: 5, CleanStart: true})
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(&paho.Disconnect{ReasonCode: 0}) })
	return client
}

func TestSubscriber_ReceivesReadings(t *testing.T) {
	cfg := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := &recordingIngester{got: make(chan sensor.Reading, 2)}
	sub, err := New(config.MQTTConfig{
		Broker:   "tcp://" + cfg.Address,
		ClientID: "home-sensor-test",
		Topic:    "home/rooms/+/readings",
	}, ing)
	require.NoError(t, err)
	go sub.Run(ctx)

	select {
	case <-sub.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never subscribed")
	}

	pub := publisher(ctx, t, cfg)
	for _, msg := range []struct{ topic, payload string }{
		{"home/rooms/3/readings", `{"quake":true,"quakeIntensity":4.5}`},
		{"home/rooms/3/readings", `{"id":"5","fire":true}`},
	} {
		_, err := pub.Publish(ctx, &paho.Publish{Topic: msg.topic, QoS: 1, Payload: []byte(msg.payload)})
		require.NoError(t, err)
	}

	var got []sensor.Reading
	for len(got) < 2 {
		select {
		case r := <-ing.got:
			got = append(got, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of 2 readings", len(got))
		}
	}

	assert.Equal(t, "3", got[0].RoomID, "room id comes from the topic when the payload has none")
	assert.True(t, got[0].Quake)
	assert.Equal(t, "5", got[1].RoomID, "payload id wins over the topic")
	assert.True(t, got[1].Fire)
}

func TestRoomIDFromTopic(t *testing.T) {
	assert.Equal(t, "kitchen", roomIDFromTopic("home/rooms/+/readings", "home/rooms/kitchen/readings"))
	assert.Equal(t, "", roomIDFromTopic("home/rooms/readings", "home/rooms/readings"))
	assert.Equal(t, "", roomIDFromTopic("home/+/x", "home"))
}

func TestBrokerAddress(t *testing.T) {
	testCases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "localhost:1883", want: "localhost:1883"},
		{in: "tcp://broker.local:1884", want: "broker.local:1884"},
		{in: "mqtt://broker.local", want: "broker.local:1883"},
		{in: "ws://broker.local", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := brokerAddress(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
