// Package habridge publishes Home Assistant service calls over MQTT,
// translating a dispatched intent's entity/domain/service triple into the
// call_service payload consumed by the household's MQTT integration.
package habridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ServiceCall is one Home Assistant service invocation.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Entity  string         `json:"entity_id"`
	Data    map[string]any `json:"data,omitempty"`
}

// Bridge publishes ServiceCall payloads to the configured command topic and
// exposes entity state received back from Home Assistant.
type Bridge struct {
	client       mqtt.Client
	commandTopic string
	statePrefix  string
}

func NewBridge(brokerURL, clientID, commandTopic, statePrefix string) (*Bridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID + "-habridge").
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("habridge: connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("habridge: connect to %s: %w", brokerURL, err)
	}
	return &Bridge{client: client, commandTopic: commandTopic, statePrefix: statePrefix}, nil
}

// CallService publishes call to the command topic.
func (b *Bridge) CallService(call ServiceCall) error {
	body, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("habridge: marshal service call: %w", err)
	}
	token := b.client.Publish(b.commandTopic, 1, false, body)
	if !token.WaitTimeout(3 * time.Second) {
		return fmt.Errorf("habridge: publish service call timed out")
	}
	return token.Error()
}

// SubscribeState subscribes to state updates for entityID, invoking onState
// with the raw JSON payload each time it changes.
func (b *Bridge) SubscribeState(entityID string, onState func(payload []byte)) error {
	topic := b.statePrefix + "/" + strings.ReplaceAll(entityID, ".", "/") + "/state"
	token := b.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		onState(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("habridge: subscribe to %s timed out", topic)
	}
	return token.Error()
}

func (b *Bridge) Close() {
	b.client.Disconnect(250)
}
