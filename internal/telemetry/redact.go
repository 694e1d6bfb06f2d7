package telemetry

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

const excerptMaxLen = 160

// RedactExcerpt masks common high-risk PII patterns in a user-text excerpt
// and truncates it before it is attached to an outbound telemetry event.
func RedactExcerpt(input string) string {
	out := input

	out = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	out = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	out = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")

	if len(out) > excerptMaxLen {
		out = out[:excerptMaxLen]
	}
	return out
}
