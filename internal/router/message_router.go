// Package router applies deterministic keyword heuristics to classify a
// transcribed utterance into an intent, slot set, and persona bias, ahead of
// dispatch to a concrete Home Assistant action.
package router

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/halcyonhq/halcyon/internal/trust"
)

// Classification is the outcome of classifying one utterance.
type Classification struct {
	Intent      string
	Slots       map[string]any
	Sensitive   bool
	PersonaBias string
	Confidence  float64
}

// Config describes the keyword -> entity vocabularies used to resolve slots.
type Config struct {
	LightEntities   map[string]string
	LockEntities    map[string]string
	ClimateEntities map[string]string
	MediaEntities   map[string]string

	GarageEntity        string
	DefaultLight        string
	DefaultLock         string
	DefaultMediaPlayer  string
	DefaultClimate      string
}

func DefaultConfig() Config {
	return Config{
		LightEntities: map[string]string{
			"kitchen":     "light.kitchen",
			"living room": "light.living_room",
			"hall":        "light.hallway",
		},
		LockEntities: map[string]string{
			"front":  "lock.front_door",
			"back":   "lock.back_door",
			"garage": "lock.garage_entry",
		},
		ClimateEntities: map[string]string{
			"living":  "climate.living",
			"bedroom": "climate.bedroom",
		},
		MediaEntities: map[string]string{
			"living":  "media_player.living_room",
			"kitchen": "media_player.kitchen",
		},
		GarageEntity:       "cover.garage",
		DefaultLight:       "light.living_room",
		DefaultLock:        "lock.front_door",
		DefaultMediaPlayer: "media_player.living_room",
		DefaultClimate:     "climate.living",
	}
}

// MediaClassifier detects media-domain intents ahead of the general keyword
// cascade; it is implemented by internal/media to avoid a circular import.
type MediaClassifier interface {
	DetectIntent(lowered string) (intent string, slots map[string]any, ok bool)
}

var temperaturePattern = regexp.MustCompile(`(-?\d{2,3})(?:\.?\d)?`)

// Router applies the classification cascade: media, then security, then
// lighting, then climate, then media playback, then a no-match fallback.
type Router struct {
	cfg   Config
	media MediaClassifier
}

func New(cfg Config, media MediaClassifier) *Router {
	return &Router{cfg: cfg, media: media}
}

func (r *Router) Classify(text string, role trust.Role) Classification {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Classification{Slots: map[string]any{}, PersonaBias: "HALSTON", Confidence: 0}
	}

	if r.media != nil {
		if intent, slots, ok := r.media.DetectIntent(lowered); ok {
			return Classification{Intent: intent, Slots: slots, PersonaBias: "HALSTON", Confidence: 0.85}
		}
	}

	if strings.Contains(lowered, "disarm") && strings.Contains(lowered, "alarm") {
		return Classification{Intent: "disarm_alarm", Slots: map[string]any{}, Sensitive: true, PersonaBias: "SCARLET", Confidence: 0.9}
	}
	if strings.Contains(lowered, "unlock") && strings.Contains(lowered, "door") {
		slots := map[string]any{"entity_id": r.matchEntity(lowered, r.cfg.LockEntities, r.cfg.DefaultLock)}
		return Classification{Intent: "unlock_door", Slots: slots, Sensitive: true, PersonaBias: "SCARLET", Confidence: 0.85}
	}
	if strings.Contains(lowered, "open") && strings.Contains(lowered, "garage") {
		slots := map[string]any{"entity_id": r.cfg.GarageEntity}
		return Classification{Intent: "open_garage", Slots: slots, Sensitive: true, PersonaBias: "SCARLET", Confidence: 0.8}
	}
	if strings.Contains(lowered, "lock") && strings.Contains(lowered, "door") {
		slots := map[string]any{"entity_id": r.matchEntity(lowered, r.cfg.LockEntities, r.cfg.DefaultLock)}
		bias := "neutral"
		if role == trust.RoleGuest || role == trust.RoleUnknown {
			bias = "SCARLET"
		}
		return Classification{Intent: "lock_door", Slots: slots, Sensitive: true, PersonaBias: bias, Confidence: 0.8}
	}

	if containsAny(lowered, "turn on", "switch on", "lights on") {
		slots := map[string]any{"entity_id": r.matchEntity(lowered, r.cfg.LightEntities, r.cfg.DefaultLight)}
		return Classification{Intent: "turn_on_light", Slots: slots, PersonaBias: "HALSTON", Confidence: 0.75}
	}
	if containsAny(lowered, "turn off", "switch off", "lights off") {
		slots := map[string]any{"entity_id": r.matchEntity(lowered, r.cfg.LightEntities, r.cfg.DefaultLight)}
		return Classification{Intent: "turn_off_light", Slots: slots, PersonaBias: "HALSTON", Confidence: 0.75}
	}

	if strings.Contains(lowered, "temperature") || strings.Contains(lowered, "thermostat") {
		slots := map[string]any{
			"entity_id":   r.matchEntity(lowered, r.cfg.ClimateEntities, r.cfg.DefaultClimate),
			"temperature": extractTemperature(lowered),
		}
		return Classification{Intent: "set_temperature", Slots: slots, PersonaBias: "HALSTON", Confidence: 0.7}
	}

	if strings.Contains(lowered, "play") || strings.Contains(lowered, "pause") {
		slots := map[string]any{"entity_id": r.matchEntity(lowered, r.cfg.MediaEntities, r.cfg.DefaultMediaPlayer)}
		return Classification{Intent: "media_play_pause", Slots: slots, PersonaBias: "HALSTON", Confidence: 0.6}
	}

	bias := "HALSTON"
	if role == trust.RoleGuest || role == trust.RoleUnknown {
		bias = "SCARLET"
	}
	return Classification{Slots: map[string]any{}, PersonaBias: bias, Confidence: 0.3}
}

func (r *Router) matchEntity(lowered string, vocab map[string]string, fallback string) string {
	keywords := make([]string, 0, len(vocab))
	for k := range vocab {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool { return len(keywords[i]) > len(keywords[j]) })
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return vocab[keyword]
		}
	}
	return fallback
}

func extractTemperature(lowered string) *float64 {
	match := temperaturePattern.FindStringSubmatch(lowered)
	if match == nil {
		return nil
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func containsAny(s string, tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
