package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains all runtime settings for the HALCYON coordination daemon.
type Config struct {
	BindAddr         string `validate:"required"`
	ShutdownTimeout  time.Duration
	MetricsNamespace string `validate:"required"`

	RedisURL string

	MQTTBrokerURL  string `validate:"required"`
	MQTTClientID   string `validate:"required"`
	MQTTTelemetry  string `validate:"required"`
	HAStatePrefix  string `validate:"required"`
	HACommandTopic string `validate:"required"`

	IdentityMapPath      string  `validate:"required"`
	CacheTTL             time.Duration
	AliasTTL             time.Duration
	MinVoiceConfidence   float64 `validate:"gte=0,lte=1"`
	DegradeConfidence    float64 `validate:"gte=0,lte=1,ltefield=MinVoiceConfidence"`

	EscalateThreshold        float64 `validate:"gte=0,lte=1"`
	DeescalateThreshold      float64 `validate:"gte=0,lte=1,ltefield=EscalateThreshold"`
	SustainedEscalationCount int     `validate:"gte=1"`
	SustainedReassuranceCount int    `validate:"gte=1"`
	LookbackWindow           int     `validate:"gte=1"`
	ModeCooldownSeconds      float64 `validate:"gte=0"`

	RoomRegistryPath string `validate:"required"`
	DefaultRoom      string
	PrivacyZones     []string
	DNDZones         []string

	FollowMeMaxGapSeconds    float64 `validate:"gte=0"`
	HandoffMinConfidence     float64 `validate:"gte=0,lte=1"`

	TMDBAPIKey       string
	TMDBBaseURL      string
	OverseerrBaseURL string
	OverseerrAPIKey  string
	PlexBaseURL      string
	PlexToken        string
}

// Load reads environment variables and applies the defaults documented for
// the reference deployment, then validates cross-field invariants.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("HALCYON_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("HALCYON_METRICS_NAMESPACE", "halcyon"),

		RedisURL: envOrDefault("HALCYON_REDIS_URL", ""),

		MQTTBrokerURL:  envOrDefault("HALCYON_MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:   envOrDefault("HALCYON_MQTT_CLIENT_ID", "halcyon-orchestrator"),
		MQTTTelemetry:  envOrDefault("HALCYON_MQTT_TELEMETRY_PREFIX", "halcyon"),
		HAStatePrefix:  envOrDefault("HALCYON_HA_STATE_PREFIX", "homeassistant"),
		HACommandTopic: envOrDefault("HALCYON_HA_COMMAND_TOPIC", "halcyon/ha/call_service"),

		IdentityMapPath:    envOrDefault("HALCYON_IDENTITY_MAP_PATH", "data/identity_map.json"),
		MinVoiceConfidence: 0.55,
		DegradeConfidence:  0.35,

		EscalateThreshold:         0.6,
		DeescalateThreshold:       0.25,
		SustainedEscalationCount:  2,
		SustainedReassuranceCount: 3,
		LookbackWindow:            10,
		ModeCooldownSeconds:       30.0,

		RoomRegistryPath: envOrDefault("HALCYON_ROOM_REGISTRY_PATH", "config/rooms.yaml"),
		DefaultRoom:      envOrDefault("DEFAULT_ROOM", ""),
		PrivacyZones:     csvEnv("PRIVACY_ZONES"),
		DNDZones:         csvEnv("DND_ZONES"),

		FollowMeMaxGapSeconds: 10.0,
		HandoffMinConfidence:  0.75,

		TMDBAPIKey:       stringsTrimSpace("TMDB_API_KEY"),
		TMDBBaseURL:      envOrDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		OverseerrBaseURL: stringsTrimSpace("OVERSEERR_BASE_URL"),
		OverseerrAPIKey:  stringsTrimSpace("OVERSEERR_API_KEY"),
		PlexBaseURL:      stringsTrimSpace("PLEX_BASE_URL"),
		PlexToken:        stringsTrimSpace("PLEX_TOKEN"),

		ShutdownTimeout:  15 * time.Second,
		CacheTTL:         180 * time.Second,
		AliasTTL:         7 * 24 * time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("HALCYON_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("HALCYON_IDENTITY_CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AliasTTL, err = durationFromEnv("HALCYON_IDENTITY_ALIAS_TTL", cfg.AliasTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.MinVoiceConfidence, err = floatFromEnv("HALCYON_MIN_VOICE_CONFIDENCE", cfg.MinVoiceConfidence)
	if err != nil {
		return Config{}, err
	}
	cfg.DegradeConfidence, err = floatFromEnv("HALCYON_DEGRADE_CONFIDENCE", cfg.DegradeConfidence)
	if err != nil {
		return Config{}, err
	}
	cfg.EscalateThreshold, err = floatFromEnv("HALCYON_ESCALATE_THRESHOLD", cfg.EscalateThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.DeescalateThreshold, err = floatFromEnv("HALCYON_DEESCALATE_THRESHOLD", cfg.DeescalateThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.FollowMeMaxGapSeconds, err = floatFromEnv("FOLLOW_ME_MAX_GAP_SEC", cfg.FollowMeMaxGapSeconds)
	if err != nil {
		return Config{}, err
	}
	cfg.HandoffMinConfidence, err = floatFromEnv("HANDOFF_MIN_CONFIDENCE", cfg.HandoffMinConfidence)
	if err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func csvEnv(key string) []string {
	raw := stringsTrimSpace(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = trimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
