// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. Provider and storage
// errors routinely echo request URLs, bearer tokens and connection strings, so
// every error that reaches a log line or an API response passes through here.
package redact

import (
	"regexp"
	"unicode/utf8"
)

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules are applied in order; earlier rules see the raw input.
var rules = []rule{
	{
		re:   regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		repl: RedactedJWTPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9_\-.~+/=]+`),
		repl: "${1} " + RedactedKeyPlaceholder,
	},
	{
		// OpenAI and OpenRouter style secret keys.
		re:   regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}`),
		repl: RedactedKeyPlaceholder,
	},
	{
		// Google API keys, as used by Gemini.
		re:   regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{20,}`),
		repl: RedactedKeyPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|access_token|x-amz-signature|x-amz-credential)=)[^&\s"]+`),
		repl: "${1}" + RedactedKeyPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb|redis|amqp|s3|https?)://[^@\s/]+@`),
		repl: "${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		re:   regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|secret_key|access_key)([=:]\s*)['"]?[^'"&\s]{3,}['"]?`),
		repl: "${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		re:   regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		repl: RedactedEmailPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.repl)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence,
// marking the cut. Raw model output is truncated before it is logged.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
