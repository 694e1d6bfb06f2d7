package persona

import (
	"fmt"
	"sync"
	"time"
)

// IncidentRecord is an audit entry ScarletAgent captures for every turn it
// handles, regardless of whether the intent is one it actively escalates
// on.
type IncidentRecord struct {
	Intent     string
	Transcript string
	At         time.Time
}

// EscalationHook is notified when ScarletAgent handles one of its
// monitored intents.
type EscalationHook func(intent string, record IncidentRecord)

// defaultMonitoredIntents mirrors access.SensitiveIntents: the household
// actions serious enough that SCARLET should flag them to any registered
// escalation hook, independent of whether dispatch actually allowed them.
var defaultMonitoredIntents = map[string]bool{
	"unlock_door":  true,
	"open_garage":  true,
	"disarm_alarm": true,
}

// ScarletAgent is the terse, security-first household voice. It keeps an
// incident log of everything it has handled and fires escalation hooks for
// a configurable set of monitored intents.
type ScarletAgent struct {
	mu        sync.Mutex
	incidents []IncidentRecord
	monitored map[string]bool
	hooks     []EscalationHook
}

func NewScarletAgent() *ScarletAgent {
	return &ScarletAgent{monitored: defaultMonitoredIntents}
}

func (a *ScarletAgent) Mode() Mode { return ModeScarlet }

// AddHook registers a callback invoked whenever GenerateResponse handles a
// monitored intent.
func (a *ScarletAgent) AddHook(hook EscalationHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

func (a *ScarletAgent) GenerateResponse(userText, intent string) string {
	a.mu.Lock()
	record := IncidentRecord{Intent: intent, Transcript: userText, At: time.Now()}
	a.incidents = append(a.incidents, record)
	monitored := a.monitored[intent]
	hooks := append([]EscalationHook(nil), a.hooks...)
	a.mu.Unlock()

	if monitored {
		notifyHooks(hooks, intent, record)
	}

	acknowledgement := "Understood."
	if intent == "" {
		acknowledgement = "Standing by."
	}
	response := fmt.Sprintf("%s Scarlet assuming control.", acknowledgement)
	if monitored {
		response += " Escalating to the appropriate safeguards."
	}
	return response
}

func (a *ScarletAgent) Deny(reason string) string {
	if reason == "" {
		reason = "The requested action is outside permitted scope."
	}
	return fmt.Sprintf("Denied. %s", reason)
}

// RecentIncidents returns up to limit of the most recently logged turns, or
// all of them if limit is <= 0 or exceeds the log length.
func (a *ScarletAgent) RecentIncidents(limit int) []IncidentRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.incidents) {
		limit = len(a.incidents)
	}
	return append([]IncidentRecord(nil), a.incidents[len(a.incidents)-limit:]...)
}

func notifyHooks(hooks []EscalationHook, intent string, record IncidentRecord) {
	for _, hook := range hooks {
		callHook(hook, intent, record)
	}
}

// callHook insulates GenerateResponse from a misbehaving subscriber, the
// same isolation the wakeword bus applies to its own subscriber callbacks.
func callHook(hook EscalationHook, intent string, record IncidentRecord) {
	defer func() { recover() }()
	hook(intent, record)
}
