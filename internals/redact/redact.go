// Package redact strips credential-looking values out of captured command
// output before it is copied into audit payloads. The full output files on
// disk are left untouched.
package redact

import "regexp"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(x-api-key|authorization|password|passphrase|token)\s*[:=]\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)(AGENT_API_KEY)=(\S+)`),
}

func Redact(text string) string {
	redacted := text
	for _, pattern := range secretPatterns {
		redacted = pattern.ReplaceAllString(redacted, "$1=<REDACTED>")
	}
	return redacted
}
