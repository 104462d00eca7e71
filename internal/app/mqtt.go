// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/arfusion/internal/config"
)

var errNoConfig = errors.New("configuration not loaded")

// connectMQTT connects to the configured broker. role is added to the client
// id, together with a random suffix so several instances can share a broker.
func connectMQTT(cfg config.MQTTConfig, role string) (mqtt.Client, error) {
	clientID := fmt.Sprintf("%s-%s-%s", cfg.ClientID, role, uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s as %s", role, cfg.Broker, clientID)
	return client, nil
}

// publishJSON marshals v and publishes it on topic.
func publishJSON(client mqtt.Client, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := client.Publish(topic, 0, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
