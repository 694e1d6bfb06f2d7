package persona

import (
	"testing"
	"time"
)

func TestStateMachineStartsHalston(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	if m.Mode() != ModeHalston {
		t.Fatalf("Mode() = %v, want HALSTON", m.Mode())
	}
}

func TestStateMachineEscalatesOnSustainedSeverity(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RegisterSeverity(0.8, now)
	mode := m.RegisterSeverity(0.9, now.Add(time.Second))
	if mode != ModeScarlet {
		t.Fatalf("Mode() after sustained escalation = %v, want SCARLET", mode)
	}
}

func TestStateMachineDoesNotEscalateOnSingleSpike(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mode := m.RegisterSeverity(0.95, now)
	if mode != ModeHalston {
		t.Fatalf("Mode() after single spike = %v, want HALSTON (needs 2 sustained)", mode)
	}
}

func TestStateMachineDoesNotEscalateWhenOneOfTwoSignalsBelowThreshold(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RegisterSeverity(0.9, now)
	mode := m.RegisterSeverity(0.4, now.Add(time.Second))
	if mode != ModeHalston {
		t.Fatalf("Mode() = %v, want HALSTON: mean (0.65) clears the threshold but the 0.4 signal individually doesn't", mode)
	}
}

func TestStateMachineDeescalateBlockedByLingeringThreatWindow(t *testing.T) {
	cfg := DefaultModeSwitchConfig()
	m := NewStateMachine(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RegisterSeverity(0.8, now)
	m.RegisterSeverity(0.9, now.Add(time.Second))
	if m.Mode() != ModeScarlet {
		t.Fatalf("setup: Mode() = %v, want SCARLET", m.Mode())
	}

	past := now.Add(time.Duration(cfg.CooldownSeconds+1) * time.Second)
	m.RegisterReassurance(0.95, past)
	m.RegisterReassurance(0.95, past.Add(time.Second))
	mode := m.RegisterReassurance(0.95, past.Add(2*time.Second))
	if mode != ModeScarlet {
		t.Fatalf("Mode() = %v, want SCARLET to persist while the threat window is still hot (0.8/0.9 mean exceeds the deescalate threshold)", mode)
	}
}

func TestStateMachineDeescalatesOnceThreatWindowCoolsOff(t *testing.T) {
	cfg := DefaultModeSwitchConfig()
	cfg.LookbackWindow = 3
	m := NewStateMachine(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RegisterSeverity(0.8, now)
	m.RegisterSeverity(0.9, now.Add(time.Second))
	if m.Mode() != ModeScarlet {
		t.Fatalf("setup: Mode() = %v, want SCARLET", m.Mode())
	}

	past := now.Add(time.Duration(cfg.CooldownSeconds+1) * time.Second)
	// New low-severity threat signals push the old high-severity pair out of
	// the (here, deliberately narrow) lookback window, satisfying the
	// deescalate rule's "threat window empty or mean <= threshold" clause.
	// The window bounds the reassurance history too, so it must still hold
	// SustainedReassuranceCount (3) signals.
	m.RegisterSeverity(0.1, past)
	m.RegisterSeverity(0.1, past.Add(time.Second))
	m.RegisterSeverity(0.1, past.Add(2*time.Second))

	m.RegisterReassurance(0.95, past.Add(3*time.Second))
	m.RegisterReassurance(0.95, past.Add(4*time.Second))
	mode := m.RegisterReassurance(0.95, past.Add(5*time.Second))
	if mode != ModeHalston {
		t.Fatalf("Mode() after sustained reassurance with a cooled threat window = %v, want HALSTON", mode)
	}
}

func TestStateMachineCooldownBlocksImmediateFlip(t *testing.T) {
	cfg := DefaultModeSwitchConfig()
	m := NewStateMachine(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.RegisterSeverity(0.8, now)
	m.RegisterSeverity(0.9, now.Add(time.Second))
	if m.Mode() != ModeScarlet {
		t.Fatalf("setup: Mode() = %v, want SCARLET", m.Mode())
	}

	// Still inside the cooldown window: reassurance should not flip mode yet.
	mode := m.RegisterReassurance(0.95, now.Add(2*time.Second))
	if mode != ModeScarlet {
		t.Fatalf("Mode() within cooldown = %v, want SCARLET (cooldown should block the flip)", mode)
	}
}

func TestStateMachineManualOverridePinsMode(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	scarlet := ModeScarlet
	m.SetManualOverride(&scarlet)
	if m.Mode() != ModeScarlet {
		t.Fatalf("Mode() = %v, want SCARLET under manual override", m.Mode())
	}

	// Reassurance signals would normally de-escalate after enough of them,
	// but the override should hold regardless.
	m.RegisterReassurance(0.95, now)
	m.RegisterReassurance(0.95, now.Add(time.Second))
	mode := m.RegisterReassurance(0.95, now.Add(2*time.Second))
	if mode != ModeScarlet {
		t.Fatalf("Mode() = %v, want SCARLET to persist under manual override", mode)
	}

	m.SetManualOverride(nil)
	if m.Mode() != ModeScarlet {
		t.Fatalf("Mode() = %v, want clearing the override to preserve the current mode", m.Mode())
	}
}

func TestStateMachineConsumeBulkEvaluatesOnceAtEnd(t *testing.T) {
	m := NewStateMachine(DefaultModeSwitchConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mode := m.ConsumeBulk([]float64{0.8, 0.9}, nil, now)
	if mode != ModeScarlet {
		t.Fatalf("Mode() after bulk threat replay = %v, want SCARLET", mode)
	}
}
