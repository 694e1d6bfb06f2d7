package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/halcyonhq/halcyon/internal/audio"
	"github.com/halcyonhq/halcyon/internal/config"
	"github.com/halcyonhq/halcyon/internal/dispatch"
	"github.com/halcyonhq/halcyon/internal/habridge"
	"github.com/halcyonhq/halcyon/internal/httpapi"
	"github.com/halcyonhq/halcyon/internal/identity"
	"github.com/halcyonhq/halcyon/internal/kvstore"
	"github.com/halcyonhq/halcyon/internal/media"
	"github.com/halcyonhq/halcyon/internal/observability"
	"github.com/halcyonhq/halcyon/internal/orchestrator"
	"github.com/halcyonhq/halcyon/internal/router"
	"github.com/halcyonhq/halcyon/internal/session"
	"github.com/halcyonhq/halcyon/internal/telemetry"
	"github.com/halcyonhq/halcyon/internal/voicepipeline"
	"github.com/halcyonhq/halcyon/internal/wyoming"
)

// silentTTS stands in for a real speech synthesizer: it renders a short
// chime sized to the reply length instead of speaking it. Swapped for a
// real TTSRenderer once a voice provider is wired in.
type silentTTS struct{}

func (silentTTS) Synthesize(text string) ([]byte, error) {
	ms := 80 + 4*len(text)
	if ms > 4000 {
		ms = 4000
	}
	return audio.GenerateChimePCM(ms, 440, 16000), nil
}

// loggingSTTSink stands in for a real speech-to-text frontend: it just
// records that a session received audio. Swapped for a real STTSink once a
// recognizer is wired in.
type loggingSTTSink struct{}

func (loggingSTTSink) PushFrame(sessionID string, frame []byte) {
	log.Printf("stt: session %s received %d bytes", sessionID, len(frame))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	kv, err := kvstore.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("kv store init failed: %v", err)
	}
	defer kv.Close()

	identityResolver, err := identity.NewResolver(
		cfg.IdentityMapPath,
		identity.WithCacheTTL(cfg.CacheTTL),
		identity.WithAliasTTL(cfg.AliasTTL),
		identity.WithMinVoiceConfidence(cfg.MinVoiceConfidence),
		identity.WithDegradeConfidence(cfg.DegradeConfidence),
	)
	if err != nil {
		log.Fatalf("identity resolver init failed: %v", err)
	}

	registry, err := voicepipeline.LoadRegistry(cfg.RoomRegistryPath, cfg.PrivacyZones, cfg.DNDZones, cfg.DefaultRoom)
	if err != nil {
		log.Fatalf("room registry load failed: %v", err)
	}

	telemetryBus, err := telemetry.NewBus(cfg.MQTTBrokerURL, cfg.MQTTClientID+"-telemetry", cfg.MQTTTelemetry)
	if err != nil {
		log.Fatalf("telemetry bus init failed: %v", err)
	}
	defer telemetryBus.Close()

	bridge, err := habridge.NewBridge(cfg.MQTTBrokerURL, cfg.MQTTClientID+"-habridge", cfg.HACommandTopic, cfg.HAStatePrefix)
	if err != nil {
		log.Fatalf("home assistant bridge init failed: %v", err)
	}
	defer bridge.Close()

	tmdbClient := media.NewTMDBClient(cfg.TMDBBaseURL, cfg.TMDBAPIKey)
	plexClient := media.NewPlexClient(cfg.PlexBaseURL, cfg.PlexToken)
	overseerrClient := media.NewOverseerrClient(cfg.OverseerrBaseURL, cfg.OverseerrAPIKey)
	mediaSource := media.NewAggregateSource(tmdbClient, plexClient, kv)
	recommender := media.NewRecommender(mediaSource, telemetryBus)
	mediaHandler := media.NewHandler(recommender, overseerrClient, kv)

	msgRouter := router.New(router.DefaultConfig(), mediaHandler)
	dispatcher := dispatch.New(bridge, mediaHandler)
	sessions := session.NewStore(kv)

	conversationRouter := voicepipeline.NewConversationRouter(kv, registry, cfg.FollowMeMaxGapSeconds, cfg.HandoffMinConfidence)
	wakewordBus := voicepipeline.NewBus(registry, conversationRouter)
	inputMux := voicepipeline.NewInputMux(loggingSTTSink{})
	wyomingPool := wyoming.NewPool()
	outputRouter := voicepipeline.NewOutputRouter(registry, wyomingPool, silentTTS{}, telemetryBus)

	orch := orchestrator.New(identityResolver, msgRouter, dispatcher, sessions, telemetryBus, metrics)

	// A resolved wakeword immediately opens the mic's STT session: the mux
	// gates raw audio on exactly this binding, so without it every frame
	// following a genuine wake would be dropped as belonging to no session.
	wakewordBus.Subscribe(func(d voicepipeline.Detection) {
		sessionID := fmt.Sprintf("mic:%s:%d", d.MicID, d.At.UnixNano())
		inputMux.BindSession(d.MicID, sessionID)
	})

	api := httpapi.New(identityResolver, orch, wakewordBus, outputRouter, func() bool { return true })
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("halcyond admin surface listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
