package app

import (
	"context"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

// produceOnce publishes the next mock sample. The compass heading goes to
// the compass topic, the way a separate NMEA compass would deliver it.
func produceOnce(src orientation.Source, client mqtt.Client, topics config.TopicsConfig) (orientation.Sample, error) {
	s, err := src.Next()
	if err != nil {
		return s, err
	}
	if s.HasCompass {
		reading := sensors.CompassReading{Heading: s.CompassHeading, Sentence: "MOCK"}
		if err := publishJSON(client, topics.Compass, true, reading); err != nil {
			return s, err
		}
	}
	return s, publishJSON(client, topics.Orientation, false, orientation.NewSample(s.Alpha, s.Beta, s.Gamma))
}

// RunProducer publishes a mock device-orientation stream to MQTT so the
// fusion daemon runs without a device.
func RunProducer(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT, "producer")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := publishJSON(client, cfg.MQTT.Topics.Screen, true, sensors.ScreenReading{Angle: 0}); err != nil {
		return err
	}

	src := orientation.NewMockSource(true)
	count := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("producer: shutting down")
			return nil
		case t := <-ticker.C:
			s, err := produceOnce(src, client, cfg.MQTT.Topics)
			if err != nil {
				log.Printf("producer: %v", err)
				continue
			}
			count++
			if count%50 == 0 {
				log.Printf("producer: %s published sample: %+v", t.Format(time.RFC3339), s)
			}
		}
	}
}
