package persona

import (
	"fmt"
	"sync"
)

// halstonMaxHistory bounds the conversational memory buffer, mirroring the
// original runtime's max_history default.
const halstonMaxHistory = 6

type conversationTurn struct {
	userText string
	intent   string
}

// HalstonAgent is the calm, reassuring household voice. It keeps a bounded
// history of recent turns so its responses can reference recent activity
// instead of treating every turn as the first.
type HalstonAgent struct {
	mu      sync.Mutex
	history []conversationTurn
}

func NewHalstonAgent() *HalstonAgent {
	return &HalstonAgent{}
}

func (a *HalstonAgent) Mode() Mode { return ModeHalston }

func (a *HalstonAgent) GenerateResponse(userText, intent string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	label := intent
	if label == "" {
		label = "general assistance"
	}
	a.history = append(a.history, conversationTurn{userText: userText, intent: label})
	if len(a.history) > halstonMaxHistory {
		a.history = a.history[len(a.history)-halstonMaxHistory:]
	}

	prefix := "Of course."
	if intent != "" {
		prefix = "Certainly."
	}
	response := fmt.Sprintf("%s Halston here, handling that now.", prefix)
	if summary := a.summarizeHistory(); summary != "" {
		response += " We've recently worked through " + summary + "."
	}
	return response
}

func (a *HalstonAgent) Deny(reason string) string {
	if reason == "" {
		reason = "The request could not be completed."
	}
	return fmt.Sprintf("I'm sorry, but I must decline. %s Please let me know if there's anything else I can help with.", reason)
}

func (a *HalstonAgent) summarizeHistory() string {
	if len(a.history) == 0 {
		return ""
	}
	intents := make(map[string]bool, len(a.history))
	for _, turn := range a.history {
		intents[turn.intent] = true
	}
	if len(intents) == 1 {
		for intent := range intents {
			return fmt.Sprintf("a series of %q requests", intent)
		}
	}
	return "a mixture of requests"
}
