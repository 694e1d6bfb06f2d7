// Package session persists per-speaker conversational context (active room,
// pending confirmations, last topic) in the shared kvstore so orchestrator
// instances can be restarted without losing in-flight household state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halcyonhq/halcyon/internal/kvstore"
)

const sessionTTL = 3600 * time.Second

// State is the persisted per-speaker session context.
type State struct {
	Room         string         `json:"room"`
	LastIntent   string         `json:"last_intent"`
	Context      map[string]any `json:"context"`
	UpdatedAtUTC int64          `json:"updated_at"`

	// ConversationTurn counts turns processed for this speaker; bumped once
	// per orchestrator.Process call.
	ConversationTurn int `json:"conversation_turn"`
	// ContextMode is the household operating context (home/night/away/...)
	// in effect as of the last turn.
	ContextMode string `json:"context_mode"`
	// LastTrust is the most recent trust.Decision score; the orchestrator
	// reads it back (with UpdatedAtUTC) as the hysteresis prior, so
	// hysteresis survives a restart. LastPersona records the persona of the
	// last turn; it is not read back, and persona mode tracking stays in
	// process memory.
	LastTrust   float64 `json:"last_trust"`
	LastPersona string  `json:"last_persona"`
	// VoiceConfidence and FaceConfidence are the biometric match strengths
	// that produced LastTrust, persisted for audit.
	VoiceConfidence float64 `json:"voice_confidence"`
	FaceConfidence  float64 `json:"face_confidence"`
	// Reassurance and Threat are the most recent trust-input signals for
	// this speaker.
	Reassurance float64 `json:"reassurance"`
	Threat      float64 `json:"threat"`
}

// Store reads and writes session state keyed by stable UUID or, for
// unregistered guests, a temporary diarization ID.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func keyFor(uuid, guestTempID string) string {
	if uuid != "" {
		return "halcyon:session:" + uuid
	}
	return "halcyon:session:guest:" + guestTempID
}

func (s *Store) Load(ctx context.Context, uuid, guestTempID string) (State, bool, error) {
	raw, ok, err := s.kv.Get(ctx, keyFor(uuid, guestTempID))
	if err != nil {
		return State{}, false, fmt.Errorf("session load: %w", err)
	}
	if !ok {
		return State{}, false, nil
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, false, fmt.Errorf("session decode: %w", err)
	}
	return st, true, nil
}

func (s *Store) Save(ctx context.Context, uuid, guestTempID string, st State) error {
	st.UpdatedAtUTC = time.Now().Unix()
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.kv.Set(ctx, keyFor(uuid, guestTempID), string(body), sessionTTL); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// TouchContext loads the current state, applies mutate, and saves the
// result back, matching the load-modify-save pattern the rest of the
// household context lifecycle relies on.
func (s *Store) TouchContext(ctx context.Context, uuid, guestTempID string, mutate func(*State)) error {
	st, _, err := s.Load(ctx, uuid, guestTempID)
	if err != nil {
		return err
	}
	if st.Context == nil {
		st.Context = make(map[string]any)
	}
	mutate(&st)
	return s.Save(ctx, uuid, guestTempID, st)
}
