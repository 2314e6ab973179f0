package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/wardenproj/warden/internal/agent"
	"github.com/wardenproj/warden/internal/approval"
	"github.com/wardenproj/warden/internal/event"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// subprotocolName is the preferred application subprotocol.
const subprotocolName = "warden.v1"

// wsSession wraps one WebSocket connection. It serializes outbound
// writes, routes approval responses back to the turn that asked, and
// keeps at most one turn in flight.
type wsSession struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan approval.Response

	turnActive atomic.Bool
	turns      sync.WaitGroup
}

// handleWS is the HTTP handler for the session WebSocket endpoint.
// It runs the full connection lifecycle: auth -> accept -> read loop.
func (g *Gateway) handleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearerProto, ok := g.authorizeWS(w, r)
		if !ok {
			return
		}

		if err := g.limiter.Allow("connect"); err != nil {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		if g.sessions.Len() >= g.limiter.MaxSessions() {
			http.Error(w, "session limit reached", http.StatusServiceUnavailable)
			return
		}

		opts := &websocket.AcceptOptions{
			Subprotocols: []string{subprotocolName},
		}
		if bearerProto != "" {
			// Echo the token subprotocol back so browser clients that
			// smuggled the token through negotiation complete the
			// handshake.
			opts.Subprotocols = append(opts.Subprotocols, bearerProto)
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		conn.SetReadLimit(g.config.MaxMessageBytes)

		sessionID, err := newSessionID()
		if err != nil {
			g.logger.Error("session id generation failed", "error", err)
			return
		}

		// The handler's context dies only after ServeHTTP returns, so
		// derive a cancel we can fire before waiting on in-flight turns.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s := &wsSession{
			id:      sessionID,
			conn:    conn,
			gateway: g,
			pending: make(map[string]chan approval.Response),
		}

		runner, err := g.factory.NewSession(sessionID, s)
		if err != nil {
			g.logger.Error("session setup failed", "session_id", sessionID, "error", err)
			s.write(ctx, errorFrame("session setup failed"))
			return
		}

		g.sessions.Touch(sessionID)
		g.metrics.ActiveSessions.Inc()
		g.auditSession(security.EventSessionCreate, sessionID, r)
		g.logger.Info("session opened", "session_id", sessionID, "remote_addr", r.RemoteAddr)

		defer func() {
			g.sessions.Remove(sessionID)
			g.metrics.ActiveSessions.Dec()
			g.auditSession(security.EventSessionClose, sessionID, r)
			g.logger.Info("session closed", "session_id", sessionID)
		}()

		g.readLoop(ctx, s, runner)

		// Unblock any turn parked on an approval prompt, then let it
		// drain before the connection is torn down.
		cancel()
		s.turns.Wait()

		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// readLoop processes inbound frames until the connection drops. Turns
// run on their own goroutine so approval responses arriving mid-turn
// still get routed.
func (g *Gateway) readLoop(ctx context.Context, s *wsSession, runner AgentRunner) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		g.sessions.Touch(s.id)

		var frame inboundFrame
		if err := security.ValidateJSONDepth(data, 0); err != nil {
			// Depth bombs are answered like any other malformed input.
			s.write(ctx, errorFrame("Invalid JSON"))
			continue
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed input is answered in-band; the connection
			// stays open.
			s.write(ctx, errorFrame("Invalid JSON"))
			continue
		}

		switch frame.Type {
		case frameMessage:
			if strings.TrimSpace(frame.Content) == "" {
				// Nothing to run a turn on.
				continue
			}
			if err := g.limiter.Allow("message"); err != nil {
				s.write(ctx, errorFrame(err.Error()))
				continue
			}
			if !s.turnActive.CompareAndSwap(false, true) {
				s.write(ctx, errorFrame("A turn is already in progress"))
				continue
			}
			s.turns.Add(1)
			go func(content string) {
				defer s.turns.Done()
				defer s.turnActive.Store(false)
				g.runTurn(ctx, s, runner, content)
			}(frame.Content)

		case frameApprovalResponse:
			if !s.resolveApproval(frame) {
				g.logger.Debug("approval response with no pending request",
					"session_id", s.id,
					"request_id", frame.RequestID,
				)
			}

		default:
			g.logger.Debug("ignoring unknown frame type",
				"session_id", s.id,
				"type", frame.Type,
			)
		}
	}
}

// runTurn feeds one user message through the agent loop and streams
// the loop's events back as frames.
func (g *Gateway) runTurn(ctx context.Context, s *wsSession, runner AgentRunner, content string) {
	g.metrics.MessagesTotal.Inc()
	start := time.Now()

	ctx, span := g.tracer.Start(ctx, "gateway.turn", trace.WithAttributes(
		attribute.String("session.id", s.id),
	))
	defer span.End()

	userMsg := provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}

	messages := []provider.LLMMessage{userMsg}
	if g.history != nil {
		if err := g.history.Append(s.id, userMsg); err != nil {
			g.logger.Warn("history append failed", "session_id", s.id, "error", err)
		}
		if all, err := g.history.GetAll(s.id); err == nil {
			messages = all
		}
	}

	s.write(ctx, outboundFrame{
		Type:     frameAgentStart,
		Provider: g.providerInfo.Name,
		Model:    g.providerInfo.Model,
	})
	g.events.Publish(event.Event{Type: event.TypeAgentStart, SessionID: s.id})

	events, err := runner.RunStream(ctx, agent.Request{
		SessionID: s.id,
		Messages:  messages,
	})
	if err != nil {
		g.metrics.ErrorsTotal.Inc()
		sanitized := provider.SanitizeError(err)
		s.write(ctx, errorFrame(sanitized))
		s.write(ctx, outboundFrame{Type: frameAgentEnd})
		g.events.Publish(event.Event{Type: event.TypeError, SessionID: s.id, Detail: sanitized})
		g.events.Publish(event.Event{Type: event.TypeAgentEnd, SessionID: s.id})
		return
	}

	var final *agent.Response
	for ev := range events {
		switch ev.Type {
		case agent.StreamEventText:
			s.write(ctx, outboundFrame{Type: frameChunk, Content: ev.Content})

		case agent.StreamEventToolStart:
			g.metrics.ToolCallsTotal.Inc()
			s.write(ctx, outboundFrame{
				Type:   frameToolCall,
				Name:   ev.ToolCall.Name,
				ToolID: ev.ToolCall.ID,
				Args:   ev.ToolCall.Arguments,
			})

		case agent.StreamEventToolEnd:
			success := ev.ToolCall.Outcome.Success
			frame := outboundFrame{
				Type:    frameToolResult,
				Name:    ev.ToolCall.Name,
				ToolID:  ev.ToolCall.ID,
				Success: &success,
				Output:  ev.ToolCall.Outcome.Output,
			}
			if !success {
				frame.Output = ev.ToolCall.Outcome.Error
				if blockedOutcome(ev.ToolCall) {
					g.metrics.BlockedToolsTotal.Inc()
				}
			}
			s.write(ctx, frame)

		case agent.StreamEventDone:
			if ev.Final == nil {
				continue
			}
			final = ev.Final
			s.write(ctx, outboundFrame{
				Type:         frameDone,
				FullResponse: final.Content,
				StopReason:   string(final.StopReason),
				Iterations:   final.Iterations,
			})

		case agent.StreamEventError:
			g.metrics.ErrorsTotal.Inc()
			sanitized := provider.SanitizeError(ev.Err)
			s.write(ctx, errorFrame(sanitized))
			g.events.Publish(event.Event{Type: event.TypeError, SessionID: s.id, Detail: sanitized})

		case agent.StreamEventUsage:
			// Usage is aggregated into the final response; no frame.
		}
	}

	s.write(ctx, outboundFrame{Type: frameAgentEnd})
	g.events.Publish(event.Event{Type: event.TypeAgentEnd, SessionID: s.id})
	g.metrics.TurnDuration.Observe(time.Since(start).Seconds())

	if final != nil {
		span.SetAttributes(
			attribute.String("turn.stop_reason", string(final.StopReason)),
			attribute.Int("turn.iterations", final.Iterations),
		)
	}

	// Persist the transcript delta the loop produced.
	if final != nil && g.history != nil {
		for _, msg := range final.Messages[min(len(messages), len(final.Messages)):] {
			if err := g.history.Append(s.id, msg); err != nil {
				g.logger.Warn("history append failed", "session_id", s.id, "error", err)
				break
			}
		}
	}
}

// blockedOutcome reports whether a failed tool call was stopped by the
// approval gate or the security policy rather than by the tool itself.
func blockedOutcome(rec *agent.ToolCallRecord) bool {
	return rec.Decision == approval.DecisionDenied ||
		strings.HasPrefix(rec.Outcome.Error, "Action blocked:")
}

// RequestApproval implements approval.Requester. It pushes an
// approval_request frame to the client and blocks until a matching
// approval_response arrives or the context ends.
func (s *wsSession) RequestApproval(ctx context.Context, req approval.Request) (approval.Response, error) {
	ch := make(chan approval.Response, 1)

	s.mu.Lock()
	s.pending[req.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	s.write(ctx, outboundFrame{
		Type:      frameApprovalRequest,
		RequestID: req.ID,
		Name:      req.ToolName,
		Message:   req.Description,
	})

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return approval.Response{}, ctx.Err()
	}
}

// resolveApproval hands an approval response to the waiting turn.
// Returns false when no request with that ID is pending.
func (s *wsSession) resolveApproval(frame inboundFrame) bool {
	s.mu.Lock()
	ch, ok := s.pending[frame.RequestID]
	if ok {
		delete(s.pending, frame.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- approval.Response{Approved: frame.Approved, Reason: frame.Reason}
	return true
}

// write marshals and sends one frame, logging on failure. Writes are
// serialized because turn goroutines and approval prompts share the
// connection.
func (s *wsSession) write(ctx context.Context, frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.gateway.logger.Error("frame marshal failed", "type", frame.Type, "error", err)
		return
	}

	s.writeMu.Lock()
	err = s.conn.Write(ctx, websocket.MessageText, data)
	s.writeMu.Unlock()

	if err != nil {
		s.gateway.logger.Debug("frame write failed", "type", frame.Type, "error", err)
		return
	}
	s.gateway.metrics.RecordFrame(frame.Type)
}

// auditSession emits a session lifecycle event if auditing is enabled.
func (g *Gateway) auditSession(eventType security.EventType, sessionID string, r *http.Request) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:      eventType,
		SessionID: sessionID,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
		},
	})
}
