// Package httpapi exposes the household daemon's operator-facing HTTP
// surface: health, readiness, Prometheus metrics, identity enrollment, and
// debug endpoints for driving the orchestrator, wakeword bus, and output
// router directly without a live satellite connection.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonhq/halcyon/internal/identity"
	"github.com/halcyonhq/halcyon/internal/observability"
	"github.com/halcyonhq/halcyon/internal/orchestrator"
	"github.com/halcyonhq/halcyon/internal/persona"
	"github.com/halcyonhq/halcyon/internal/voicepipeline"
)

// Orchestrator is satisfied by *orchestrator.Orchestrator; narrowed so the
// debug endpoint can be exercised in tests without the full MQTT/Redis
// wiring a real Orchestrator needs.
type Orchestrator interface {
	Process(ctx context.Context, in orchestrator.Input) (orchestrator.Result, error)
}

// WakewordReporter is satisfied by *voicepipeline.Bus.
type WakewordReporter interface {
	Report(d voicepipeline.Detection) (winner voicepipeline.Detection, resolved bool)
}

// OutputDeliverer is satisfied by *voicepipeline.OutputRouter.
type OutputDeliverer interface {
	Deliver(roomID string, mode persona.Mode, text string) error
}

// Server is the admin HTTP surface for one running daemon instance. The
// orchestrator, wakeword, and delivery endpoints exist for operator
// diagnostics and integration testing against a satellite firmware build;
// the real per-utterance path runs from the STT/wakeword frontend directly,
// not over HTTP.
type Server struct {
	identityResolver *identity.Resolver
	orch             Orchestrator
	wakeword         WakewordReporter
	output           OutputDeliverer
	ready            func() bool
}

func New(identityResolver *identity.Resolver, orch Orchestrator, wakeword WakewordReporter, output OutputDeliverer, ready func() bool) *Server {
	return &Server{identityResolver: identityResolver, orch: orch, wakeword: wakeword, output: output, ready: ready}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, req)
	})
	r.Post("/v1/identity/enroll", s.handleEnroll)
	r.Post("/v1/identity/{uuid}/forget", s.handleForget)
	r.Post("/v1/orchestrator/process", s.handleProcess)
	r.Post("/v1/wakeword/report", s.handleWakewordReport)
	r.Post("/v1/voice/deliver", s.handleDeliver)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type enrollRequest struct {
	SpeakerTempID string `json:"speaker_temp_id"`
	Role          string `json:"role"`
}

type enrollResponse struct {
	UUID string `json:"uuid"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SpeakerTempID == "" {
		http.Error(w, "speaker_temp_id is required", http.StatusBadRequest)
		return
	}
	stableUUID, err := s.identityResolver.EnrollNewIdentity(req.SpeakerTempID, req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(enrollResponse{UUID: stableUUID})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	removed, err := s.identityResolver.ForgetIdentity(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"aliases_removed": removed})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		http.Error(w, "orchestrator not configured", http.StatusServiceUnavailable)
		return
	}
	var in orchestrator.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := s.orch.Process(r.Context(), in)
	if errors.Is(err, orchestrator.ErrEmptyInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) handleWakewordReport(w http.ResponseWriter, r *http.Request) {
	if s.wakeword == nil {
		http.Error(w, "wakeword bus not configured", http.StatusServiceUnavailable)
		return
	}
	var d voicepipeline.Detection
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	winner, resolved := s.wakeword.Report(d)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"resolved": resolved, "winner": winner})
}

type deliverRequest struct {
	RoomID string      `json:"room_id"`
	Mode   persona.Mode `json:"mode"`
	Text   string      `json:"text"`
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	if s.output == nil {
		http.Error(w, "output router not configured", http.StatusServiceUnavailable)
		return
	}
	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = persona.ModeHalston
	}
	if err := s.output.Deliver(req.RoomID, req.Mode, req.Text); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
