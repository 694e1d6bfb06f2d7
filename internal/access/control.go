// Package access supplements the trust-score gate with a named policy for
// which intents require elevated access and which additionally require a
// slot to be present, independent of the caller's trust score.
package access

// SensitiveIntents names the intents that require allow_sensitive from the
// trust decision before they can be dispatched at all.
var SensitiveIntents = map[string]bool{
	"unlock_door":  true,
	"open_garage":  true,
	"disarm_alarm": true,
}

// RequiredSlots names additional slots an intent must carry beyond what
// allow_sensitive already gates, e.g. an alarm code.
var RequiredSlots = map[string][]string{
	"disarm_alarm": {"code"},
}

// Evaluate reports whether intent may proceed given allowSensitive and the
// resolved slot set, along with a denial reason when it can't.
func Evaluate(intent string, allowSensitive bool, slots map[string]any) (ok bool, reason string) {
	if SensitiveIntents[intent] && !allowSensitive {
		return false, "That function is not available right now."
	}
	for _, required := range RequiredSlots[intent] {
		if _, present := slots[required]; !present {
			if intent == "disarm_alarm" && required == "code" {
				return false, "I need the code to disarm."
			}
			return false, "missing required slot: " + required
		}
	}
	return true, ""
}
