package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/wardenproj/warden/internal/security"
)

// authHint is returned with every 401 so clients know both ways to
// present a token. Browser WebSocket clients cannot set arbitrary
// headers, so the token may ride in the subprotocol list instead.
const authHint = "Unauthorized — provide Authorization: Bearer <token> or Sec-WebSocket-Protocol: bearer.<token>"

// bearerProtocolPrefix marks a token smuggled through the WebSocket
// subprotocol negotiation.
const bearerProtocolPrefix = "bearer."

// bearerFromRequest extracts the bearer token from a request. The
// Authorization header takes precedence; the Sec-WebSocket-Protocol
// list is only consulted when the header carries no token.
func bearerFromRequest(r *http.Request) (token string, viaProtocol bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		// A blank token after the scheme counts as no header token at
		// all, leaving the subprotocol as a fallback.
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if trimmed := strings.TrimSpace(after); trimmed != "" {
				return trimmed, false
			}
		}
	}

	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, proto := range strings.Split(header, ",") {
			proto = strings.TrimSpace(proto)
			if after, ok := strings.CutPrefix(proto, bearerProtocolPrefix); ok && after != "" {
				return after, true
			}
		}
	}

	return "", false
}

// authorizeWS validates the handshake credentials for the session
// endpoint. On failure it writes a 401 with the auth hint and returns
// ok=false. bearerProto carries the matched subprotocol entry so the
// accept can echo it back to the client.
func (g *Gateway) authorizeWS(w http.ResponseWriter, r *http.Request) (bearerProto string, ok bool) {
	if !g.config.Auth.IsConfigured() {
		return "", true
	}

	token, viaProtocol := bearerFromRequest(r)
	if token == "" || !constantTimeEqual(token, g.config.Auth.BearerToken) {
		g.emitAuthEvent(security.EventAuthFailure, r, "invalid or missing bearer token")
		http.Error(w, authHint, http.StatusUnauthorized)
		return "", false
	}

	detail := "bearer header"
	if viaProtocol {
		detail = "bearer subprotocol"
		bearerProto = bearerProtocolPrefix + token
	}
	g.emitAuthEvent(security.EventAuthSuccess, r, detail)
	return bearerProto, true
}

// authMiddleware protects plain HTTP endpoints with the same bearer
// token used by the session endpoint.
func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		after, hasBearer := strings.CutPrefix(auth, "Bearer ")
		if !hasBearer || !constantTimeEqual(after, g.config.Auth.BearerToken) {
			g.emitAuthEvent(security.EventAuthFailure, r, "invalid or missing bearer token")
			http.Error(w, authHint, http.StatusUnauthorized)
			return
		}
		g.emitAuthEvent(security.EventAuthSuccess, r, "bearer header")
		next.ServeHTTP(w, r)
	})
}

// emitAuthEvent logs an auth event to the audit logger if available.
func (g *Gateway) emitAuthEvent(eventType security.EventType, r *http.Request, detail string) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:   eventType,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
