package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/sensors"
)

// RunCompassProducer opens the compass serial port, parses NMEA heading
// sentences, and publishes them as JSON to the compass topic. It refuses to
// run unless compass.enable is set.
func RunCompassProducer(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}
	serialOpts, err := compassSerialOptions(cfg.Compass)
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTT, "compass")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open %s: %w", serialOpts.PortName, err)
	}
	log.Printf("compass: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	// A blocked read only returns once the port is closed.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()
	defer port.Close()

	n, err := pumpCompass(port, client, cfg.MQTT.Topics.Compass)
	log.Printf("compass: published %d headings", n)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

var errCompassDisabled = errors.New("compass.enable is false")

// compassSerialOptions builds the serial settings for an enabled compass.
func compassSerialOptions(cfg config.CompassConfig) (serial.OpenOptions, error) {
	if !cfg.Enable {
		return serial.OpenOptions{}, errCompassDisabled
	}
	if cfg.SerialPort == "" {
		return serial.OpenOptions{}, errors.New("compass.serial_port is not set")
	}
	return serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}, nil
}

// pumpCompass reads NMEA lines from r and publishes every heading until r
// ends. It returns the number of published readings.
func pumpCompass(r io.Reader, client mqtt.Client, topic string) (int, error) {
	reader := bufio.NewReader(r)
	published := 0
	lastLog := time.Time{}

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			reading, perr := sensors.ParseCompassSentence(line)
			switch {
			case perr == nil:
				if err := publishJSON(client, topic, true, reading); err != nil {
					log.Printf("compass: %v", err)
				} else {
					published++
					if now := time.Now(); now.Sub(lastLog) >= time.Second {
						log.Printf("compass: heading %.2f (%s)", reading.Heading, reading.Sentence)
						lastLog = now
					}
				}
			case errors.Is(perr, sensors.ErrNoHeading):
				// other sentence types share the port
			default:
				// noisy serial line or partial sentence
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return published, nil
			}
			return published, fmt.Errorf("compass read: %w", err)
		}
	}
}
