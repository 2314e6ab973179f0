package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces any secret found in log output.
const RedactPlaceholder = "***REDACTED***"

// wellKnownKeyPatterns match API key formats regardless of whether the
// value was ever registered: OpenAI, Anthropic, GitHub, AWS, and
// bearer credentials leaked from headers.
var wellKnownKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]{16,}`),
}

// Redactor scrubs secrets out of strings before they reach a log or a
// client surface. It combines the well-known key patterns with literal
// values registered at runtime (provider keys, the pairing token).
// Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	literals []string
}

// NewRedactor returns a Redactor armed with the well-known patterns
// and no literals.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// AddLiteral registers a runtime secret to be scrubbed on sight.
// Empty values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces the literal set with the credential store's
// current values. Called after modules have registered their secrets.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// Redact returns s with every known pattern and registered literal
// replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	for _, p := range wellKnownKeyPatterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}

	r.mu.RLock()
	literals := r.literals
	r.mu.RUnlock()
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}
