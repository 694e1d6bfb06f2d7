package voicepipeline

import (
	"fmt"

	"github.com/halcyonhq/halcyon/internal/audio"
	"github.com/halcyonhq/halcyon/internal/persona"
	"github.com/halcyonhq/halcyon/internal/telemetry"
	"github.com/halcyonhq/halcyon/internal/wyoming"
)

const (
	privacyChimeMS = 200
	dndChimeMS     = 150
	chimeFreqHz    = 880.0
	sampleRate     = 16000
)

// TTSRenderer turns reply text into PCM16LE audio for delivery.
type TTSRenderer interface {
	Synthesize(text string) ([]byte, error)
}

// OutputRouter resolves which room should receive a reply and delivers it
// via the room's Wyoming satellite. In a privacy zone it publishes a
// voice/error event and sends a short chime instead of speech; in a
// do-not-disturb zone the current persona can't override it sends a chime
// without publishing an event. An unknown room or a failed synthesis or
// delivery publishes a voice/error event and returns the error; no chime is
// sent in that case.
type OutputRouter struct {
	registry *Registry
	pool     *wyoming.Pool
	tts      TTSRenderer
	bus      *telemetry.Bus
}

func NewOutputRouter(registry *Registry, pool *wyoming.Pool, tts TTSRenderer, bus *telemetry.Bus) *OutputRouter {
	return &OutputRouter{registry: registry, pool: pool, tts: tts, bus: bus}
}

func (o *OutputRouter) Deliver(roomID string, mode persona.Mode, text string) error {
	room, ok := o.registry.Room(roomID)
	if !ok {
		o.publishError("routing_failed")
		return fmt.Errorf("output router: unknown room %q", roomID)
	}

	if o.registry.IsPrivacyZone(roomID) {
		o.publishError("privacy_zone")
		return o.pool.SendAudio(room.WyomingHost, room.WyomingPort, sampleRate, audio.GenerateChimePCM(privacyChimeMS, chimeFreqHz, sampleRate))
	}
	if o.registry.IsDNDZone(roomID) && mode != persona.ModeScarlet {
		return o.pool.SendAudio(room.WyomingHost, room.WyomingPort, sampleRate, audio.GenerateChimePCM(dndChimeMS, chimeFreqHz, sampleRate))
	}

	pcm, err := o.tts.Synthesize(text)
	if err != nil {
		o.publishError("routing_failed")
		return fmt.Errorf("output router: synthesize: %w", err)
	}
	if err := o.pool.SendAudio(room.WyomingHost, room.WyomingPort, sampleRate, pcm); err != nil {
		o.publishError("routing_failed")
		return fmt.Errorf("output router: deliver to %s: %w", roomID, err)
	}
	return nil
}

func (o *OutputRouter) publishError(code string) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish("voice/error", map[string]any{"code": code})
}
