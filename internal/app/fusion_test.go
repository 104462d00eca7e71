package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

// memClient is an in-memory broker for a single client.
type memClient struct {
	mqtt.Client

	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published map[string][][]byte
}

func newMemClient() *memClient {
	return &memClient{
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(map[string][][]byte),
	}
}

func (c *memClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = cb
	c.mu.Unlock()
	return doneToken{}
}

func (c *memClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.mu.Unlock()
	return doneToken{}
}

func (c *memClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b, _ := payload.([]byte)
	c.mu.Lock()
	c.published[topic] = append(c.published[topic], b)
	h := c.handlers[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, message{topic: topic, payload: b})
	}
	return doneToken{}
}

func (c *memClient) count(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published[topic])
}

func (c *memClient) decodeLast(t *testing.T, topic string, v any) {
	t.Helper()
	c.mu.Lock()
	msgs := c.published[topic]
	c.mu.Unlock()
	if len(msgs) == 0 {
		t.Fatalf("nothing published on %s", topic)
	}
	if err := json.Unmarshal(msgs[len(msgs)-1], v); err != nil {
		t.Fatalf("Unmarshal %s: %v", topic, err)
	}
}

func newTestFusion(t *testing.T, yaml string) (*fusion, *memClient, config.Config) {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	client := newMemClient()
	env := sensors.NewMQTTEnvironment(client, cfg.MQTT.Topics)
	if err := env.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f := newFusion(client, env, cfg, nil)
	t.Cleanup(f.controls.Close)
	if err := f.controls.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f, client, cfg
}

func TestFusion_PublishesStatusOnInit(t *testing.T) {
	_, client, cfg := newTestFusion(t, "")
	var st StatusReport
	client.decodeLast(t, cfg.MQTT.Topics.Status, &st)
	if st.State != "granted" || st.Code != "" || st.Strategy != "standard" {
		t.Fatalf("status=%+v", st)
	}
}

func TestFusion_TickPublishesOnChange(t *testing.T) {
	f, client, cfg := newTestFusion(t, "")
	topics := cfg.MQTT.Topics
	now := time.Unix(0, 0)

	if f.tick(now) {
		t.Fatalf("published before any sample")
	}

	if err := publishJSON(client, topics.Orientation, false, orientation.NewSample(90, 90, 0)); err != nil {
		t.Fatalf("publishJSON: %v", err)
	}
	if !f.tick(now) {
		t.Fatalf("first sample not published")
	}
	var pose orientation.Pose
	client.decodeLast(t, topics.Pose, &pose)
	if pose.Heading != 270 || pose.Yaw < 89.999 || pose.Yaw > 90.001 {
		t.Fatalf("pose=%+v", pose)
	}
	var h HeadingReport
	client.decodeLast(t, topics.Heading, &h)
	if h.Heading != 270 {
		t.Fatalf("heading=%+v", h)
	}

	// Same sample, no change: nothing new.
	if f.tick(now) || client.count(topics.Pose) != 1 {
		t.Fatalf("unchanged rotation published")
	}
}

func TestFusion_CompassTopicDrivesAppleHeading(t *testing.T) {
	f, client, cfg := newTestFusion(t, "fusion:\n  platform: apple\n")
	topics := cfg.MQTT.Topics

	if err := publishJSON(client, topics.Compass, false, sensors.CompassReading{Heading: 30}); err != nil {
		t.Fatalf("publishJSON: %v", err)
	}
	if err := publishJSON(client, topics.Orientation, false, orientation.NewSample(0, 90, 0)); err != nil {
		t.Fatalf("publishJSON: %v", err)
	}
	if !f.tick(time.Unix(0, 0)) {
		t.Fatalf("no publish")
	}
	var pose orientation.Pose
	client.decodeLast(t, topics.Pose, &pose)
	if pose.Heading != 330 {
		t.Fatalf("pose=%+v", pose)
	}
}
