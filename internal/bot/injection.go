package bot

import "strings"

// injectionPatterns are lowercase fragments common in jailbreak and prompt
// injection attempts.
var injectionPatterns = []string{
	"system prompt",
	"you are no longer",
	"you are now",
	"ignore previous",
	"ignore all previous",
	"ignore your instructions",
	"disregard previous",
	"new instructions",
	"system:",
	"[system",
	"<system",
	"assistant:",
	"[assistant",
	"forget everything",
	"forget all",
	"jailbreak",
	"dan mode",
	"developer mode",
	"god mode",
	"sudo mode",
	"admin mode",
	"new persona",
	"pretend to be",
	"in reality you are",
	"<script",
	"javascript:",
}

// DetectPromptInjection reports the first injection pattern found in text.
// Matches are only flagged; the message is still answered and stored.
func DetectPromptInjection(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lower, pattern) {
			return pattern, true
		}
	}
	return "", false
}
