// Package security provides the action-control policy, the egress URL
// guard, credential management, log redaction, rate limiting, input
// validation and audit logging.
package security

import "sync"

// CredentialStore holds runtime secrets: provider API keys and the
// gateway pairing token. Modules register their secrets here during
// Provision so the redactor can scrub every one of them from the logs.
// Safe for concurrent use.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]string)}
}

// Set registers a secret under name, replacing any previous value.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = value
}

// Get looks up a secret by name.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// Values returns every non-empty secret value, in no particular order.
// The redactor consumes this to build its literal set.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.creds))
	for _, v := range s.creds {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Len reports the number of registered secrets.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
