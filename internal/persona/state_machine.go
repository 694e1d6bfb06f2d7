// Package persona tracks the active assistant persona (HALSTON, the calm
// default voice, or SCARLET, the escalation voice) per household, switching
// between them based on independent rolling windows of threat and
// reassurance signals.
package persona

import (
	"sync"
	"time"
)

type Mode string

const (
	ModeHalston Mode = "HALSTON"
	ModeScarlet Mode = "SCARLET"
)

// ModeSwitchConfig controls the hysteresis applied to mode transitions so a
// single noisy signal can't flap the household between personas.
type ModeSwitchConfig struct {
	EscalateThreshold         float64
	DeescalateThreshold       float64
	SustainedEscalationCount  int
	SustainedReassuranceCount int
	LookbackWindow            int
	CooldownSeconds           float64
}

func DefaultModeSwitchConfig() ModeSwitchConfig {
	return ModeSwitchConfig{
		EscalateThreshold:         0.6,
		DeescalateThreshold:       0.25,
		SustainedEscalationCount:  2,
		SustainedReassuranceCount: 3,
		LookbackWindow:            10,
		CooldownSeconds:           30.0,
	}
}

type signal struct {
	value float64
	at    time.Time
}

// StateMachine holds the persona mode for one household plus two
// independent sliding windows of recent evidence: threat severity (drives
// escalation) and reassurance confidence (drives de-escalation). The two
// windows age out on their own schedule rather than sharing one combined
// history, matching how escalation only ever clears the reassurance window
// and de-escalation only ever clears the threat window.
type StateMachine struct {
	cfg ModeSwitchConfig

	mu          sync.Mutex
	mode        Mode
	threat      []signal
	reassurance []signal
	lastSwitch  time.Time
	override    *Mode
}

func NewStateMachine(cfg ModeSwitchConfig) *StateMachine {
	return &StateMachine{cfg: cfg, mode: ModeHalston}
}

// Mode returns the current persona, honoring a manual override if set.
func (m *StateMachine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetManualOverride forces the persona to mode and pins it there until
// cleared with a nil mode, short-circuiting all future transition
// evaluation in between.
func (m *StateMachine) SetManualOverride(mode *Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = mode
	if mode != nil {
		m.mode = *mode
		m.lastSwitch = time.Time{}
	}
}

// RegisterSeverity feeds a new threat observation (0-1, higher means more
// threatening/urgent) into the threat window and re-evaluates transitions.
func (m *StateMachine) RegisterSeverity(severity float64, now time.Time) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threat = appendBounded(m.threat, signal{value: severity, at: now}, m.cfg.LookbackWindow)
	return m.evaluate(now)
}

// RegisterReassurance feeds a reassurance observation (0-1 confidence that
// the household is safe) into the reassurance window and re-evaluates
// transitions.
func (m *StateMachine) RegisterReassurance(confidence float64, now time.Time) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reassurance = appendBounded(m.reassurance, signal{value: confidence, at: now}, m.cfg.LookbackWindow)
	return m.evaluate(now)
}

// ConsumeBulk folds a batch of threat and reassurance signals, all stamped
// at now, into their respective windows with a single transition evaluation
// at the end -- for replaying a backlog (e.g. after a restart) without
// firing an intermediate transition per signal.
func (m *StateMachine) ConsumeBulk(threats, reassurances []float64, now time.Time) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, severity := range threats {
		m.threat = appendBounded(m.threat, signal{value: severity, at: now}, m.cfg.LookbackWindow)
	}
	for _, confidence := range reassurances {
		m.reassurance = appendBounded(m.reassurance, signal{value: confidence, at: now}, m.cfg.LookbackWindow)
	}
	return m.evaluate(now)
}

func appendBounded(signals []signal, s signal, max int) []signal {
	signals = append(signals, s)
	if len(signals) > max {
		signals = signals[len(signals)-max:]
	}
	return signals
}

func (m *StateMachine) evaluate(now time.Time) Mode {
	if m.override != nil {
		return m.mode
	}
	if !m.lastSwitch.IsZero() && now.Sub(m.lastSwitch).Seconds() < m.cfg.CooldownSeconds {
		return m.mode
	}

	switch m.mode {
	case ModeHalston:
		if m.shouldEscalate() {
			m.mode = ModeScarlet
			m.reassurance = nil
			m.lastSwitch = now
		}
	case ModeScarlet:
		if m.shouldDeescalate() {
			m.mode = ModeHalston
			m.threat = nil
			m.lastSwitch = now
		}
	}
	return m.mode
}

// shouldEscalate requires the last SustainedEscalationCount threat signals
// to individually clear EscalateThreshold, not merely average above it, so
// one high spike next to a low one can't sneak past on the mean alone.
func (m *StateMachine) shouldEscalate() bool {
	n := m.cfg.SustainedEscalationCount
	if len(m.threat) < n {
		return false
	}
	recent := m.threat[len(m.threat)-n:]
	for _, s := range recent {
		if s.value < m.cfg.EscalateThreshold {
			return false
		}
	}
	return meanValue(recent) >= m.cfg.EscalateThreshold
}

// shouldDeescalate requires sustained reassurance AND that the threat
// window itself has gone quiet (empty, or its mean has fallen to or below
// DeescalateThreshold) -- sustained reassurance alone can't overrule an
// active threat window.
func (m *StateMachine) shouldDeescalate() bool {
	n := m.cfg.SustainedReassuranceCount
	if len(m.reassurance) < n {
		return false
	}
	recent := m.reassurance[len(m.reassurance)-n:]
	if meanValue(recent) < m.cfg.DeescalateThreshold {
		return false
	}
	if len(m.threat) == 0 {
		return true
	}
	return meanValue(m.threat) <= m.cfg.DeescalateThreshold
}

func meanValue(signals []signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range signals {
		sum += s.value
	}
	return sum / float64(len(signals))
}
