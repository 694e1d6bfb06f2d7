// Package dispatch turns a classified intent into a concrete Home Assistant
// service call or media action, gating on the access package's sensitive-
// intent rules before any handler runs.
package dispatch

import (
	"context"
	"fmt"

	"github.com/halcyonhq/halcyon/internal/access"
	"github.com/halcyonhq/halcyon/internal/habridge"
)

// ServiceCaller is satisfied by *habridge.Bridge; narrowed to one method so
// tests can inject a fake without standing up an MQTT broker.
type ServiceCaller interface {
	CallService(call habridge.ServiceCall) error
}

// Outcome is the spoken-facing result of dispatching one intent.
type Outcome struct {
	Spoken string
	Denied bool
}

// Handler executes one intent's domain action and returns what the persona
// should say in response.
type Handler func(ctx context.Context, slots map[string]any) (Outcome, error)

// MediaHandler is satisfied by internal/media.Handler; kept as a narrow
// interface here so dispatch doesn't import the whole media package surface.
type MediaHandler interface {
	Recommend(ctx context.Context, uuid, sessionID string, scarlet bool) (string, error)
}

// Dispatcher maps intent names to handlers via an explicit table, matching
// the explicit-handler-map-over-reflection approach used for HA service
// calls: every route is named and auditable rather than derived by
// convention.
type Dispatcher struct {
	handlers map[string]Handler
	bridge   ServiceCaller
	media    MediaHandler
}

func New(bridge ServiceCaller, media MediaHandler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler), bridge: bridge, media: media}
	d.registerDefaults()
	return d
}

func (d *Dispatcher) registerDefaults() {
	d.handlers["turn_on_light"] = d.haServiceCall("light", "turn_on")
	d.handlers["turn_off_light"] = d.haServiceCall("light", "turn_off")
	d.handlers["lock_door"] = d.haServiceCall("lock", "lock")
	d.handlers["unlock_door"] = d.haServiceCall("lock", "unlock")
	d.handlers["open_garage"] = d.haServiceCall("cover", "open_cover")
	d.handlers["disarm_alarm"] = d.haServiceCall("alarm_control_panel", "alarm_disarm")
	d.handlers["set_temperature"] = d.haServiceCall("climate", "set_temperature")
	d.handlers["media_play_pause"] = d.haServiceCall("media_player", "media_play_pause")
}

// Dispatch runs intent's handler after access.Evaluate gates it on
// allowSensitive and required slots. An empty intent (a fallback utterance
// that carries no actionable intent) is a silent no-op outcome; a non-empty
// intent with no registered handler returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, intent string, slots map[string]any, allowSensitive bool) (Outcome, error) {
	if intent == "" {
		return Outcome{}, nil
	}

	if ok, reason := access.Evaluate(intent, allowSensitive, slots); !ok {
		return Outcome{Denied: true, Spoken: reason}, nil
	}

	switch intent {
	case "media_recommend", "media_request", "media_add_to_list":
		return d.dispatchMedia(ctx, intent, slots)
	}

	handler, ok := d.handlers[intent]
	if !ok {
		return Outcome{}, fmt.Errorf("dispatch: no handler registered for intent %q", intent)
	}
	return handler(ctx, slots)
}

func (d *Dispatcher) dispatchMedia(ctx context.Context, intent string, slots map[string]any) (Outcome, error) {
	if d.media == nil {
		return Outcome{}, fmt.Errorf("dispatch: media intent %q requires a media handler", intent)
	}
	uuid, _ := slots["uuid"].(string)
	sessionID, _ := slots["session_id"].(string)
	scarlet, _ := slots["scarlet"].(bool)
	spoken, err := d.media.Recommend(ctx, uuid, sessionID, scarlet)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Spoken: spoken}, nil
}

func (d *Dispatcher) haServiceCall(domain, service string) Handler {
	return func(ctx context.Context, slots map[string]any) (Outcome, error) {
		entityID, _ := slots["entity_id"].(string)
		data := map[string]any{}
		if temp, ok := slots["temperature"].(*float64); ok && temp != nil {
			data["temperature"] = *temp
		}
		if code, ok := slots["code"]; ok {
			data["code"] = code
		}
		if d.bridge == nil {
			return Outcome{}, fmt.Errorf("dispatch: no Home Assistant bridge configured")
		}
		if err := d.bridge.CallService(habridge.ServiceCall{Domain: domain, Service: service, Entity: entityID, Data: data}); err != nil {
			return Outcome{}, fmt.Errorf("dispatch: call %s.%s on %s: %w", domain, service, entityID, err)
		}
		return Outcome{Spoken: fmt.Sprintf("%s.%s on %s", domain, service, entityID)}, nil
	}
}
