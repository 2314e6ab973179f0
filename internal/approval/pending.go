package approval

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of a pending approval.
type State int

// State values for the pending approval state machine.
const (
	StateIdle    State = iota // No pending approval
	StatePending              // Waiting for user response
	StateTimeout              // Timed out, denied by default
)

// Pending manages the state machine for a single approval flow.
// It transitions: idle → pending → (response | timeout → deny-by-default).
type Pending struct {
	mu           sync.Mutex
	state        State
	ResponseChan chan Response
}

// NewPending creates a new Pending in the idle state.
func NewPending() *Pending {
	return &Pending{
		state:        StateIdle,
		ResponseChan: make(chan Response, 1),
	}
}

// State returns the current approval state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Begin starts an approval request with the given requester and timeout.
// It transitions from idle to pending, sends the request, and returns the
// response. On timeout, the approval is denied by default.
// Returns to idle after completion.
func (p *Pending) Begin(
	ctx context.Context,
	requester Requester,
	req Request,
	timeout time.Duration,
) (Response, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return Response{}, errors.New("approval already in flight")
	}
	p.state = StatePending
	if p.ResponseChan == nil {
		p.ResponseChan = make(chan Response, 1)
	}
	respCh := p.ResponseChan
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Drop any stale response from a previous flow.
	select {
	case <-respCh:
	default:
	}

	requestErrCh := make(chan error, 1)
	if requester != nil {
		go func() {
			resp, err := requester.RequestApproval(ctx, req)
			if err != nil {
				requestErrCh <- err
				return
			}
			select {
			case respCh <- resp:
			case <-ctx.Done():
			}
		}()
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case err := <-requestErrCh:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return p.timeoutResponse(respCh)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return Response{}, ctx.Err()
		}
		return Response{}, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return p.timeoutResponse(respCh)
		}
		return Response{}, ctx.Err()
	}
}

// timeoutResponse transitions to the timeout state and produces the
// deny-by-default response.
func (p *Pending) timeoutResponse(respCh chan Response) (Response, error) {
	p.mu.Lock()
	p.state = StateTimeout
	p.mu.Unlock()

	resp := Response{Approved: false, Reason: "timed out"}
	select {
	case respCh <- resp:
	default:
	}
	return resp, ErrApprovalTimeout
}
