// Package telemetry publishes structured orchestrator events onto an MQTT
// broker so downstream dashboards and the Home Assistant bridge can observe
// what the coordination layer is doing without coupling to its internals.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Event is one structured telemetry record, always published under
// "<prefix>/<topic>".
type Event struct {
	Topic   string         `json:"-"`
	Payload map[string]any `json:"-"`
}

// Bus publishes Events to MQTT. It is safe for concurrent use.
type Bus struct {
	client mqtt.Client
	prefix string
}

func NewBus(brokerURL, clientID, prefix string) (*Bus, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("telemetry: connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: connect to %s: %w", brokerURL, err)
	}
	return &Bus{client: client, prefix: prefix}, nil
}

// Publish adds a "ts" field (epoch seconds) when payload has none,
// serializes payload as JSON and publishes it to "<prefix>/<topic>" at QoS 0
// (best-effort; telemetry loss is acceptable, dispatch is not gated on it).
func (b *Bus) Publish(topic string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["ts"]; !ok {
		payload["ts"] = time.Now().Unix()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telemetry: marshal %s: %w", topic, err)
	}
	full := b.prefix + "/" + topic
	token := b.client.Publish(full, 0, false, body)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("telemetry: publish %s timed out", full)
	}
	return token.Error()
}

func (b *Bus) Close() {
	b.client.Disconnect(250)
}
