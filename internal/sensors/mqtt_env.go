package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/permission"
)

// compassMaxAge bounds how long a compass reading is merged into samples
// that lack one.
const compassMaxAge = 2 * time.Second

// ScreenReading is the payload published on the screen topic.
type ScreenReading struct {
	Angle float64 `json:"angle"`
}

// MQTTEnvironment feeds orientation, screen and compass messages from an
// MQTT broker into the fusion core. The broker link counts as a secure
// context with no permission prompt.
type MQTTEnvironment struct {
	client mqtt.Client
	topics config.TopicsConfig
	now    func() time.Time

	orientation listeners[orientation.Sample]
	screen      listeners[float64]

	mu          sync.Mutex
	screenAngle float64
	compass     CompassReading
	compassAt   time.Time
	haveCompass bool
	subscribed  []string
}

// NewMQTTEnvironment wraps a connected client. Call Start to subscribe.
func NewMQTTEnvironment(client mqtt.Client, topics config.TopicsConfig) *MQTTEnvironment {
	return &MQTTEnvironment{client: client, topics: topics, now: time.Now}
}

// Start subscribes to the orientation, screen and compass topics.
func (e *MQTTEnvironment) Start() error {
	subs := []struct {
		topic   string
		handler func([]byte) error
	}{
		{e.topics.Orientation, e.handleOrientation},
		{e.topics.Screen, e.handleScreen},
		{e.topics.Compass, e.handleCompass},
	}
	for _, s := range subs {
		if s.topic == "" {
			continue
		}
		topic, handler := s.topic, s.handler
		token := e.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handler(msg.Payload()); err != nil {
				log.Printf("mqtt env: %s: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		e.mu.Lock()
		e.subscribed = append(e.subscribed, topic)
		e.mu.Unlock()
		log.Printf("mqtt env: subscribed to %s", topic)
	}
	return nil
}

// Stop unsubscribes from every topic subscribed by Start.
func (e *MQTTEnvironment) Stop() {
	e.mu.Lock()
	topics := e.subscribed
	e.subscribed = nil
	e.mu.Unlock()
	if len(topics) == 0 {
		return
	}
	token := e.client.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("mqtt env: unsubscribe: %v", err)
	}
}

func (e *MQTTEnvironment) handleOrientation(payload []byte) error {
	var s orientation.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("orientation payload: %w", err)
	}
	if !s.HasCompass {
		e.mu.Lock()
		if e.haveCompass && e.now().Sub(e.compassAt) <= compassMaxAge {
			s = s.WithCompass(e.compass.Heading)
		}
		e.mu.Unlock()
	}
	e.orientation.emit(s)
	return nil
}

func (e *MQTTEnvironment) handleScreen(payload []byte) error {
	var r ScreenReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("screen payload: %w", err)
	}
	angle := orientation.NormalizeScreenAngle(r.Angle)
	e.mu.Lock()
	e.screenAngle = angle
	e.mu.Unlock()
	e.screen.emit(angle)
	return nil
}

func (e *MQTTEnvironment) handleCompass(payload []byte) error {
	var r CompassReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("compass payload: %w", err)
	}
	e.mu.Lock()
	e.compass = r
	e.compassAt = e.now()
	e.haveCompass = true
	e.mu.Unlock()
	return nil
}

func (e *MQTTEnvironment) HasOrientationAPI() bool { return true }
func (e *MQTTEnvironment) IsSecureContext() bool   { return true }
func (e *MQTTEnvironment) HasPermissionAPI() bool  { return false }

// RequestPermission always fails: the broker link has no permission model.
func (e *MQTTEnvironment) RequestPermission(context.Context) (<-chan permission.Result, error) {
	return nil, permission.ErrNoPermissionAPI
}

func (e *MQTTEnvironment) OnOrientation(fn func(orientation.Sample)) func() {
	return e.orientation.add(fn)
}

func (e *MQTTEnvironment) OnScreenRotation(fn func(float64)) func() {
	return e.screen.add(fn)
}

func (e *MQTTEnvironment) ScreenAngle() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screenAngle
}
