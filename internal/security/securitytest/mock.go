// Package securitytest provides test doubles for the security package.
package securitytest

import "github.com/wardenproj/warden/internal/security"

// NewTestAuditLogger builds an AuditLogger that captures events in
// memory instead of writing anywhere. The second return value hands
// back everything logged so far.
func NewTestAuditLogger() (*security.AuditLogger, func() []security.AuditEvent) {
	var events []security.AuditEvent
	logger := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			events = append(events, e)
		},
	})
	return logger, func() []security.AuditEvent { return events }
}
