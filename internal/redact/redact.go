// Package redact removes sensitive fragments from text before it is logged.
// Database errors routinely echo connection strings, SQL, file paths and
// row values such as author email addresses; none of that belongs in logs.
package redact

import (
	"log/slog"
	"regexp"
)

// Placeholders substituted for redacted fragments.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	PathPlaceholder       = "[REDACTED_PATH]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
	HostPlaceholder       = "[REDACTED_HOST]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules run in order; credentials go first so that a DSN is not half
// consumed by the host rule.
var rules = []rule{
	{regexp.MustCompile(`(?i)\b(postgres|postgresql|pgx|sqlite|file)://[^@\s]+@`), CredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+`), CredentialPlaceholder},
	{regexp.MustCompile(`(?i)\bfile:[^\s?'"]+`), PathPlaceholder},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), PathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), PathPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), EmailPlaceholder},
	{regexp.MustCompile(
		`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\w,*().=$?'"]+\b(FROM|INTO|SET|WHERE)\b[\s\w,*().=$?'"]*`,
	), SQLPlaceholder},
	{regexp.MustCompile(`(?i)\bKey \([^)]*\)=\([^)]*\)`), Placeholder},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}:\d{1,5}\b`), HostPlaceholder},
	{regexp.MustCompile(`\blocalhost:\d{1,5}\b`), HostPlaceholder},
}

// String redacts sensitive information from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts the message of err. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// ErrorAttr is a slog attribute carrying the redacted message of err.
func ErrorAttr(err error) slog.Attr {
	return slog.String("error", Error(err))
}
