// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/arfusion/internal/config"
	"github.com/relabs-tech/arfusion/internal/events"
	"github.com/relabs-tech/arfusion/internal/orientation"
	"github.com/relabs-tech/arfusion/internal/sensors"
	"github.com/relabs-tech/arfusion/internal/telemetry"
)

// StatusReport is the payload published on the status topic.
type StatusReport struct {
	State    string `json:"state"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	Strategy string `json:"strategy"`
}

// HeadingReport is the payload published on the heading topic.
type HeadingReport struct {
	Heading float64 `json:"heading"`
}

// fusion owns one Controls and publishes its output.
type fusion struct {
	client   mqtt.Client
	topics   config.TopicsConfig
	controls *orientation.Controls

	rotation quat.Number
	lastLog  time.Time
	ticks    int
}

func newFusion(client mqtt.Client, env orientation.Environment, cfg config.Config, m *telemetry.Metrics) *fusion {
	// The broker feed carries no platform hint; auto means standard.
	controls := orientation.NewControls(env, cfg.Controls(false), orientation.WithMetrics(m))
	f := &fusion{client: client, topics: cfg.MQTT.Topics, controls: controls}

	bus := controls.Bus()
	bus.On(events.Granted, f.publishStatus)
	bus.On(events.Error, f.publishStatus)
	return f
}

func (f *fusion) publishStatus(e events.Event) {
	report := StatusReport{
		State:    string(f.controls.PermissionState()),
		Code:     string(e.Code),
		Message:  e.Message,
		Strategy: f.controls.Strategy().Name(),
	}
	if err := publishJSON(f.client, f.topics.Status, true, report); err != nil {
		log.Printf("fusion: %v", err)
	}
}

// tick runs one update and publishes pose and heading when the rotation
// changed. It reports whether anything was published.
func (f *fusion) tick(now time.Time) bool {
	f.ticks++
	if !f.controls.Update(&f.rotation) {
		return false
	}

	heading := f.controls.Heading()
	pose := orientation.PoseFromQuaternion(f.rotation, heading)
	if err := publishJSON(f.client, f.topics.Pose, true, pose); err != nil {
		log.Printf("fusion: %v", err)
		return false
	}
	if err := publishJSON(f.client, f.topics.Heading, true, HeadingReport{Heading: heading}); err != nil {
		log.Printf("fusion: %v", err)
	}

	if now.Sub(f.lastLog) >= time.Second {
		log.Printf("fusion: roll=%6.2f pitch=%6.2f yaw=%6.2f heading=%6.2f (%d ticks)",
			pose.Roll, pose.Pitch, pose.Yaw, pose.Heading, f.ticks)
		f.lastLog = now
		f.ticks = 0
	}
	return true
}

func (f *fusion) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			f.tick(now)
		}
	}
}

// RunFusion subscribes to the sensor topics, runs the fusion loop and
// publishes pose, heading and permission status until ctx is cancelled.
func RunFusion(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}
	metrics := telemetry.Default()

	client, err := connectMQTT(cfg.MQTT, "fusion")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	env := sensors.NewMQTTEnvironment(client, cfg.MQTT.Topics)
	if err := env.Start(); err != nil {
		return err
	}
	defer env.Stop()

	if cfg.Fusion.MetricsListen != "" {
		srv := &http.Server{Addr: cfg.Fusion.MetricsListen, Handler: promhttp.Handler()}
		go func() {
			log.Printf("fusion: metrics on %s/metrics", cfg.Fusion.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("fusion: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	f := newFusion(client, env, *cfg, metrics)
	defer f.controls.Close()
	if err := f.controls.Init(); err != nil {
		return err
	}

	log.Printf("fusion: running every %s (%s)", cfg.Fusion.UpdateInterval, f.controls.Strategy().Name())
	err = f.run(ctx, cfg.Fusion.UpdateInterval)
	log.Println("fusion: shutting down")
	return err
}
