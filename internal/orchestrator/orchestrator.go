// Package orchestrator wires identity resolution, trust scoring, persona
// mode tracking, intent classification, and dispatch into the single
// pipeline that runs once per recognized utterance.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/halcyonhq/halcyon/internal/dispatch"
	"github.com/halcyonhq/halcyon/internal/identity"
	"github.com/halcyonhq/halcyon/internal/observability"
	"github.com/halcyonhq/halcyon/internal/persona"
	"github.com/halcyonhq/halcyon/internal/router"
	"github.com/halcyonhq/halcyon/internal/session"
	"github.com/halcyonhq/halcyon/internal/telemetry"
	"github.com/halcyonhq/halcyon/internal/trust"
)

// ErrEmptyInput is returned by Process when the recognized text is empty or
// whitespace-only. It is the only error Process returns for an otherwise
// well-formed Input; every other internal failure (a missing dispatch
// handler, an unreachable Home Assistant bridge) is contained at the
// dispatch boundary and surfaced as a denied Outcome instead.
var ErrEmptyInput = errors.New("orchestrator: user text is empty")

// genericDispatchFailureMessage is spoken back to the household whenever
// dispatch fails for a reason that has nothing to do with household policy
// (a missing handler, a bridge timeout, a panic inside a handler). It never
// reveals the underlying cause.
const genericDispatchFailureMessage = "I encountered an internal error handling that request."

// Input is one recognized utterance ready for classification and dispatch.
type Input struct {
	SpeakerTempID string
	SessionID     string
	RoomID        string
	Text          string
	VoiceProb     float64
	Context       trust.Context
	Threat        float64
	Reassurance   float64
}

// Result is the orchestrator's decision for one Input.
type Result struct {
	UUID   string
	Role   trust.Role
	Mode   persona.Mode
	Intent string
	Spoken string
	Denied bool
}

// agentPair holds the two persona agents a household's resolved UUID (or
// unresolved guest bucket) accumulates state in across turns. Both are kept
// alive for the lifetime of the Orchestrator rather than reconstructed per
// turn, since HalstonAgent keeps conversational history and ScarletAgent
// keeps an incident log.
type agentPair struct {
	halston *persona.HalstonAgent
	scarlet *persona.ScarletAgent
}

func (p agentPair) forMode(mode persona.Mode) persona.Agent {
	if mode == persona.ModeScarlet {
		return p.scarlet
	}
	return p.halston
}

// Orchestrator holds the per-household collaborators needed to process an
// utterance end to end.
type Orchestrator struct {
	identity   *identity.Resolver
	router     *router.Router
	dispatcher *dispatch.Dispatcher
	sessions   *session.Store
	bus        *telemetry.Bus
	metrics    *observability.Metrics

	mu sync.Mutex
	// personaStates and agents are both keyed by resolved UUID (or "" for
	// unresolved guests); every household member tracks escalation and
	// persona voice independently.
	personaStates map[string]*persona.StateMachine
	agents        map[string]agentPair
}

func New(
	identityResolver *identity.Resolver,
	msgRouter *router.Router,
	dispatcher *dispatch.Dispatcher,
	sessions *session.Store,
	bus *telemetry.Bus,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		identity:      identityResolver,
		router:        msgRouter,
		dispatcher:    dispatcher,
		sessions:      sessions,
		bus:           bus,
		metrics:       metrics,
		personaStates: make(map[string]*persona.StateMachine),
		agents:        make(map[string]agentPair),
	}
}

// Process runs the full resolve -> score -> classify -> dispatch pipeline
// for in. Identity resolution is invoked unconditionally, even for
// utterances that won't end up needing a stable identity, because the
// resolver's own cache makes a redundant call cheap and every other stage
// downstream assumes a role has already been resolved.
func (o *Orchestrator) Process(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{}, ErrEmptyInput
	}

	now := time.Now()

	uuid, role := o.timedResolve(in.SpeakerTempID, in.VoiceProb)

	// matchConfidence reflects how well this utterance matched a known
	// household voiceprint, not raw ASR/wakeword confidence: an unresolved
	// speaker has no identity to have matched, so it contributes nothing to
	// the trust score even if in.VoiceProb was high.
	matchConfidence := 0.0
	if uuid != "" {
		matchConfidence = in.VoiceProb
	}

	priorScore, priorAt := o.loadHysteresis(ctx, uuid, in.SpeakerTempID)
	decision := o.timedScore(trust.Input{
		IdentityRoleHint: trust.Role(role),
		Context:          in.Context,
		Reassurance:      in.Reassurance,
		Threat:           in.Threat,
		VoiceConfidence:  matchConfidence,
		PriorScore:       priorScore,
		PriorScoredAt:    priorAt,
		Now:              now,
	})
	if o.metrics != nil {
		o.metrics.ObserveTrustScore(decision.Score)
	}

	state := o.stateMachineFor(uuid)
	mode := o.timedEvaluateMode(state, decision, now)
	if o.metrics != nil {
		o.metrics.ObservePersonaSwitch(string(mode))
	}

	classification := o.timedClassify(in.Text, decision.Role)

	finalPersona := o.selectPersona(decision, classification, mode)

	outcome := o.safeDispatch(ctx, classification.Intent, mergeSlots(classification.Slots, uuid, in.SessionID, finalPersona), decision.AllowSensitive)
	if o.metrics != nil {
		result := "ok"
		if outcome.Denied {
			result = "denied"
		}
		o.metrics.ObserveIntentDispatch(classification.Intent, result)
	}

	spoken := o.render(uuid, finalPersona, in.Text, classification.Intent, outcome)

	var turn int
	if o.sessions != nil {
		_ = o.sessions.TouchContext(ctx, uuid, in.SpeakerTempID, func(s *session.State) {
			s.Room = in.RoomID
			s.LastIntent = classification.Intent
			s.ConversationTurn++
			s.ContextMode = string(in.Context)
			s.LastTrust = decision.Score
			s.LastPersona = string(finalPersona)
			s.VoiceConfidence = matchConfidence
			s.Reassurance = in.Reassurance
			s.Threat = in.Threat
			turn = s.ConversationTurn
		})
	}

	o.publishTelemetry(uuid, in.Text, classification.Intent, finalPersona, decision, turn)

	return Result{
		UUID:   uuid,
		Role:   decision.Role,
		Mode:   finalPersona,
		Intent: classification.Intent,
		Spoken: spoken,
		Denied: outcome.Denied,
	}, nil
}

// loadHysteresis recovers the prior trust score and the time it was last
// computed from the shared session store so hysteresis survives an
// orchestrator restart or a second instance handling the same household,
// instead of living in process memory.
func (o *Orchestrator) loadHysteresis(ctx context.Context, uuid, speakerTempID string) (float64, time.Time) {
	if o.sessions == nil {
		return 0, time.Time{}
	}
	st, ok, err := o.sessions.Load(ctx, uuid, speakerTempID)
	if err != nil || !ok {
		return 0, time.Time{}
	}
	return st.LastTrust, time.Unix(st.UpdatedAtUTC, 0)
}

// safeDispatch runs dispatch within a try boundary: any Go error the
// dispatcher returns (an unreachable bridge, an unregistered handler) or a
// panic inside a handler is contained here and converted into a denied
// Outcome with a generic spoken message, matching the invariant that an
// external-service failure never propagates past the orchestrator boundary
// as a Go error.
func (o *Orchestrator) safeDispatch(ctx context.Context, intent string, slots map[string]any, allowSensitive bool) (outcome dispatch.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = dispatch.Outcome{Denied: true, Spoken: genericDispatchFailureMessage}
		}
	}()

	result, err := o.timedDispatch(ctx, intent, slots, allowSensitive)
	if err != nil {
		return dispatch.Outcome{Denied: true, Spoken: genericDispatchFailureMessage}
	}
	return result
}

// render produces the final spoken response by running the dispatch outcome
// through the active persona agent: on a fallback turn with no classified
// intent, the agent's bare preamble; on success, the agent's preamble
// followed by the handler's own spoken text; on denial, the agent's denial
// template wrapping the reason dispatch or access control already produced.
func (o *Orchestrator) render(uuid string, mode persona.Mode, text, intent string, outcome dispatch.Outcome) string {
	agent := o.agentPairFor(uuid).forMode(mode)

	if outcome.Denied {
		reason := outcome.Spoken
		if reason == "" {
			reason = "The request could not be completed."
		}
		return agent.Deny(reason)
	}

	preamble := agent.GenerateResponse(text, intent)
	if intent == "" {
		return preamble
	}
	return strings.TrimSpace(preamble + " " + strings.TrimSpace(outcome.Spoken))
}

func (o *Orchestrator) publishTelemetry(uuid, text, intent string, mode persona.Mode, decision trust.Decision, turn int) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish("orch/intent", map[string]any{
		"uuid":    uuid,
		"intent":  intent,
		"persona": mode,
		"excerpt": telemetry.RedactExcerpt(text),
	})
	_ = o.bus.Publish("orch/trust", map[string]any{
		"speaker_uuid":    uuid,
		"score":           decision.Score,
		"role":            decision.Role,
		"allow_sensitive": decision.AllowSensitive,
		"persona_bias":    decision.PersonaBias,
	})
	_ = o.bus.Publish("orch/active_persona", map[string]any{
		"speaker_uuid":      uuid,
		"persona":           mode,
		"conversation_turn": turn,
	})
}

func (o *Orchestrator) stateMachineFor(uuid string) *persona.StateMachine {
	o.mu.Lock()
	defer o.mu.Unlock()
	sm, ok := o.personaStates[uuid]
	if !ok {
		sm = persona.NewStateMachine(persona.DefaultModeSwitchConfig())
		o.personaStates[uuid] = sm
	}
	return sm
}

func (o *Orchestrator) agentPairFor(uuid string) agentPair {
	o.mu.Lock()
	defer o.mu.Unlock()
	pair, ok := o.agents[uuid]
	if !ok {
		pair = agentPair{halston: persona.NewHalstonAgent(), scarlet: persona.NewScarletAgent()}
		o.agents[uuid] = pair
	}
	return pair
}

// selectPersona blends the trust decision's bias with the household's
// tracked escalation mode. The two trust-bias formulas below are a
// deliberately retained piece of tuning: a low trust score pushes severity
// toward 1 (SCARLET) with a floor of 0.4 so even a marginal trust dip
// nudges the mode machine, while a high score pushes confidence toward 1
// (HALSTON) with the same floor and a gentler 150-point slope so recovery
// back to HALSTON is slower than the slide into SCARLET.
func (o *Orchestrator) selectPersona(decision trust.Decision, classification router.Classification, mode persona.Mode) persona.Mode {
	switch decision.PersonaBias {
	case "SCARLET":
		severity := min1(0.4 + (100.0-decision.Score)/100.0)
		if severity >= 0.6 {
			return persona.ModeScarlet
		}
	case "HALSTON":
		confidence := min1(0.4 + decision.Score/150.0)
		if confidence >= 0.6 {
			return persona.ModeHalston
		}
	}

	// sensitivity_guard: a non-trust-bias source (state machine escalation)
	// can resolve SCARLET even when the trust decision didn't request it;
	// if the speaker isn't cleared for sensitive actions, still grant a
	// session-scoped reassurance nudge so a single scare doesn't lock a
	// low-trust guest into the escalation voice indefinitely.
	if mode == persona.ModeScarlet && !decision.AllowSensitive && decision.PersonaBias != "SCARLET" {
		o.stateMachineFor("").RegisterReassurance(0.6, time.Now())
	}
	return mode
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func mergeSlots(slots map[string]any, uuid, sessionID string, mode persona.Mode) map[string]any {
	out := make(map[string]any, len(slots)+3)
	for k, v := range slots {
		out[k] = v
	}
	out["uuid"] = uuid
	out["session_id"] = sessionID
	out["scarlet"] = mode == persona.ModeScarlet
	return out
}

func (o *Orchestrator) timedResolve(speakerTempID string, voiceProb float64) (string, string) {
	start := time.Now()
	uuid, role := o.identity.Resolve(speakerTempID, voiceProb)
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("resolve_identity", time.Since(start))
	}
	return uuid, role
}

func (o *Orchestrator) timedScore(in trust.Input) trust.Decision {
	start := time.Now()
	decision := trust.Score(in)
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("score_trust", time.Since(start))
	}
	return decision
}

func (o *Orchestrator) timedEvaluateMode(sm *persona.StateMachine, decision trust.Decision, now time.Time) persona.Mode {
	start := time.Now()
	var mode persona.Mode
	if decision.PersonaBias == "SCARLET" {
		mode = sm.RegisterSeverity(1.0, now)
	} else {
		mode = sm.RegisterReassurance(1.0, now)
	}
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("evaluate_mode", time.Since(start))
	}
	return mode
}

func (o *Orchestrator) timedClassify(text string, role trust.Role) router.Classification {
	start := time.Now()
	c := o.router.Classify(text, role)
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("classify_intent", time.Since(start))
	}
	return c
}

func (o *Orchestrator) timedDispatch(ctx context.Context, intent string, slots map[string]any, allowSensitive bool) (dispatch.Outcome, error) {
	start := time.Now()
	outcome, err := o.dispatcher.Dispatch(ctx, intent, slots, allowSensitive)
	if o.metrics != nil {
		o.metrics.ObserveTurnStage("dispatch_intent", time.Since(start))
	}
	return outcome, err
}
