package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halcyonhq/halcyon/internal/dispatch"
	"github.com/halcyonhq/halcyon/internal/habridge"
	"github.com/halcyonhq/halcyon/internal/identity"
	"github.com/halcyonhq/halcyon/internal/kvstore"
	"github.com/halcyonhq/halcyon/internal/router"
	"github.com/halcyonhq/halcyon/internal/session"
	"github.com/halcyonhq/halcyon/internal/trust"
)

type fakeBridge struct{ calls int }

func (f *fakeBridge) CallService(call habridge.ServiceCall) error {
	f.calls++
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *identity.Resolver) {
	t.Helper()
	idResolver, err := identity.NewResolver(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	r := router.New(router.DefaultConfig(), nil)
	d := dispatch.New(&fakeBridge{}, nil)
	sessions := session.NewStore(kvstore.NewMemoryStore())

	return New(idResolver, r, d, sessions, nil, nil), idResolver
}

func TestProcessUnknownGuestGetsLightControlWithoutSensitiveAccess(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-guest",
		Text:          "turn on the kitchen lights",
		VoiceProb:     0.9,
		Context:       trust.ContextHome,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Intent != "turn_on_light" {
		t.Fatalf("Intent = %q, want turn_on_light", result.Intent)
	}
	if result.Denied {
		t.Fatalf("Result = %+v, want lighting allowed for a guest", result)
	}
}

func TestProcessUnknownGuestDeniedSensitiveIntent(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-guest-2",
		Text:          "unlock the front door",
		VoiceProb:     0.9,
		Context:       trust.ContextHome,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.Denied {
		t.Fatalf("Result = %+v, want sensitive intent denied for an unregistered guest", result)
	}
}

func TestProcessRejectsWhitespaceOnlyText(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-guest-3",
		Text:          "   \t\n  ",
		VoiceProb:     0.9,
		Context:       trust.ContextHome,
	})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Process() error = %v, want ErrEmptyInput", err)
	}
}

func TestProcessDeniedSensitiveIntentSpeaksExactDenialPhrase(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-guest-4",
		Text:          "unlock the front door",
		VoiceProb:     0.9,
		Context:       trust.ContextHome,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.Denied {
		t.Fatalf("Result = %+v, want sensitive intent denied", result)
	}
	if !strings.Contains(result.Spoken, "That function is not available right now.") {
		t.Fatalf("Spoken = %q, want it to contain %q", result.Spoken, "That function is not available right now.")
	}
}

func TestProcessContainsDispatchFailureAsDeniedOutcome(t *testing.T) {
	idResolver, err := identity.NewResolver(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	r := router.New(router.DefaultConfig(), nil)
	// No bridge configured: turn_on_light's handler returns an error rather
	// than a panic, exercising the Go-error half of the try boundary.
	d := dispatch.New(nil, nil)
	sessions := session.NewStore(kvstore.NewMemoryStore())
	o := New(idResolver, r, d, sessions, nil, nil)

	result, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-guest-5",
		Text:          "turn on the kitchen lights",
		VoiceProb:     0.9,
		Context:       trust.ContextHome,
	})
	if err != nil {
		t.Fatalf("Process() error = %v, want dispatch failure contained at the boundary", err)
	}
	if !result.Denied {
		t.Fatalf("Result = %+v, want a denied outcome when the bridge is unavailable", result)
	}
}

func TestProcessPersistsTrustAndTurnToSessionStore(t *testing.T) {
	idResolver, err := identity.NewResolver(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if err := idResolver.RegisterIdentity("temp-owner-2", "uuid-owner-2", "owner"); err != nil {
		t.Fatalf("RegisterIdentity() error = %v", err)
	}
	r := router.New(router.DefaultConfig(), nil)
	d := dispatch.New(&fakeBridge{}, nil)
	sessions := session.NewStore(kvstore.NewMemoryStore())
	o := New(idResolver, r, d, sessions, nil, nil)
	ctx := context.Background()

	if _, err := o.Process(ctx, Input{SpeakerTempID: "temp-owner-2", Text: "turn on the lights", VoiceProb: 0.95, Context: trust.ContextHome}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := o.Process(ctx, Input{SpeakerTempID: "temp-owner-2", Text: "turn off the lights", VoiceProb: 0.95, Context: trust.ContextHome}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	st, ok, err := sessions.Load(ctx, "uuid-owner-2", "")
	if err != nil || !ok {
		t.Fatalf("Load() ok=%v, err=%v", ok, err)
	}
	if st.ConversationTurn != 2 {
		t.Fatalf("ConversationTurn = %d, want 2", st.ConversationTurn)
	}
	if st.LastTrust <= 0 {
		t.Fatalf("LastTrust = %v, want a positive persisted trust score", st.LastTrust)
	}
}

func TestProcessRegisteredOwnerAllowedSensitiveIntent(t *testing.T) {
	o, idResolver := newTestOrchestrator(t)
	if err := idResolver.RegisterIdentity("temp-owner", "uuid-owner", "owner"); err != nil {
		t.Fatalf("RegisterIdentity() error = %v", err)
	}

	result, err := o.Process(context.Background(), Input{
		SpeakerTempID: "temp-owner",
		Text:          "unlock the front door",
		VoiceProb:     0.95,
		Context:       trust.ContextHome,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Denied {
		t.Fatalf("Result = %+v, want owner allowed to unlock the door", result)
	}
	if result.UUID != "uuid-owner" {
		t.Fatalf("UUID = %q, want uuid-owner", result.UUID)
	}
}
