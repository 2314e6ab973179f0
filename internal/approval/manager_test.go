package approval

import (
	"context"
	"testing"
	"time"

	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/security/securitytest"
)

func newTestManager(autonomy security.AutonomyLevel, requester Requester, overrides map[string]security.Sensitivity) *Manager {
	policy := security.NewPolicy(autonomy, security.Unlimited, overrides)
	return NewManager(policy, requester, 2*time.Second, nil)
}

func TestManagerDecide_FullAutonomyNeverAsks(t *testing.T) {
	t.Parallel()

	asked := false
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			asked = true
			return Response{Approved: false}, nil
		},
	}
	m := newTestManager(security.AutonomyFull, requester, nil)

	d, _ := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)
	if d != DecisionNotRequired {
		t.Errorf("decision = %v, want DecisionNotRequired", d)
	}
	if asked {
		t.Error("full autonomy must not trigger the handshake")
	}
}

func TestManagerDecide_ReadOnlyDenies(t *testing.T) {
	t.Parallel()

	m := newTestManager(security.AutonomyReadOnly, nil, nil)

	d, reason := m.Decide(context.Background(), "read_file", security.SensitivityLow, nil)
	if d != DecisionDenied {
		t.Errorf("decision = %v, want DecisionDenied", d)
	}
	if reason != "autonomy is read-only" {
		t.Errorf("reason = %q, want %q", reason, "autonomy is read-only")
	}
}

func TestManagerDecide_SupervisedLowSensitivitySkipsHandshake(t *testing.T) {
	t.Parallel()

	asked := false
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			asked = true
			return Response{Approved: true}, nil
		},
	}
	m := newTestManager(security.AutonomySupervised, requester, nil)

	d, _ := m.Decide(context.Background(), "read_file", security.SensitivityLow, nil)
	if d != DecisionNotRequired {
		t.Errorf("decision = %v, want DecisionNotRequired", d)
	}
	if asked {
		t.Error("low-sensitivity tool must not trigger the handshake")
	}
}

func TestManagerDecide_SupervisedHighSensitivityApproved(t *testing.T) {
	t.Parallel()

	var gotReq Request
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, req Request) (Response, error) {
			gotReq = req
			return Response{Approved: true, Reason: "looks fine"}, nil
		},
	}
	m := newTestManager(security.AutonomySupervised, requester, nil)

	d, reason := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, []byte(`{"url":"https://example.com"}`))
	if d != DecisionApproved {
		t.Errorf("decision = %v, want DecisionApproved", d)
	}
	if reason != "looks fine" {
		t.Errorf("reason = %q, want %q", reason, "looks fine")
	}
	if gotReq.ToolName != "browser_open" {
		t.Errorf("request tool = %q, want browser_open", gotReq.ToolName)
	}
	if gotReq.ID == "" {
		t.Error("request ID should be set")
	}
	if string(gotReq.Arguments) != `{"url":"https://example.com"}` {
		t.Errorf("request arguments = %s", gotReq.Arguments)
	}
}

func TestManagerDecide_SupervisedHighSensitivityDenied(t *testing.T) {
	t.Parallel()

	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			return Response{Approved: false, Reason: "too risky"}, nil
		},
	}
	m := newTestManager(security.AutonomySupervised, requester, nil)

	d, reason := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)
	if d != DecisionDenied {
		t.Errorf("decision = %v, want DecisionDenied", d)
	}
	if reason != "too risky" {
		t.Errorf("reason = %q, want %q", reason, "too risky")
	}
}

func TestManagerDecide_DeniedWithoutReasonGetsDefault(t *testing.T) {
	t.Parallel()

	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			return Response{Approved: false}, nil
		},
	}
	m := newTestManager(security.AutonomySupervised, requester, nil)

	d, reason := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)
	if d != DecisionDenied {
		t.Errorf("decision = %v, want DecisionDenied", d)
	}
	if reason != "denied by user" {
		t.Errorf("reason = %q, want %q", reason, "denied by user")
	}
}

func TestManagerDecide_TimeoutDeniesNeverApproves(t *testing.T) {
	t.Parallel()

	requester := &fakeRequester{
		respondFunc: func(ctx context.Context, _ Request) (Response, error) {
			<-ctx.Done()
			return Response{}, ctx.Err()
		},
	}
	policy := security.NewPolicy(security.AutonomySupervised, security.Unlimited, nil)
	m := NewManager(policy, requester, 50*time.Millisecond, nil)

	d, reason := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)
	if d != DecisionDenied {
		t.Errorf("decision = %v, want DecisionDenied", d)
	}
	if reason != "timed out" {
		t.Errorf("reason = %q, want %q", reason, "timed out")
	}
}

func TestManagerDecide_NoRequesterDenies(t *testing.T) {
	t.Parallel()

	m := newTestManager(security.AutonomySupervised, nil, nil)

	d, reason := m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)
	if d != DecisionDenied {
		t.Errorf("decision = %v, want DecisionDenied", d)
	}
	if reason != "no approval requester configured" {
		t.Errorf("reason = %q, want %q", reason, "no approval requester configured")
	}
}

func TestManagerDecide_SensitivityOverrideForcesHandshake(t *testing.T) {
	t.Parallel()

	asked := false
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			asked = true
			return Response{Approved: true}, nil
		},
	}
	overrides := map[string]security.Sensitivity{"read_file": security.SensitivityHigh}
	m := newTestManager(security.AutonomySupervised, requester, overrides)

	d, _ := m.Decide(context.Background(), "read_file", security.SensitivityLow, nil)
	if d != DecisionApproved {
		t.Errorf("decision = %v, want DecisionApproved", d)
	}
	if !asked {
		t.Error("overridden sensitivity should trigger the handshake")
	}
}

func TestManagerDecide_SensitivityOverrideRelaxes(t *testing.T) {
	t.Parallel()

	asked := false
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			asked = true
			return Response{Approved: false}, nil
		},
	}
	overrides := map[string]security.Sensitivity{"fetch_url": security.SensitivityLow}
	m := newTestManager(security.AutonomySupervised, requester, overrides)

	d, _ := m.Decide(context.Background(), "fetch_url", security.SensitivityHigh, nil)
	if d != DecisionNotRequired {
		t.Errorf("decision = %v, want DecisionNotRequired", d)
	}
	if asked {
		t.Error("relaxed sensitivity should skip the handshake")
	}
}

func TestManagerDecide_AuditsDecision(t *testing.T) {
	t.Parallel()

	audit, collected := securitytest.NewTestAuditLogger()
	requester := &fakeRequester{
		respondFunc: func(_ context.Context, _ Request) (Response, error) {
			return Response{Approved: true, Reason: "ok"}, nil
		},
	}
	policy := security.NewPolicy(security.AutonomySupervised, security.Unlimited, nil)
	m := NewManager(policy, requester, time.Second, audit)

	m.Decide(context.Background(), "browser_open", security.SensitivityHigh, nil)

	events := collected()
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	if events[0].Type != security.EventApproval {
		t.Errorf("event type = %q, want %q", events[0].Type, security.EventApproval)
	}
	if events[0].Decision != "approved" {
		t.Errorf("event decision = %q, want approved", events[0].Decision)
	}
	if events[0].ToolName != "browser_open" {
		t.Errorf("event tool = %q, want browser_open", events[0].ToolName)
	}
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    Decision
		want string
	}{
		{DecisionNotRequired, "not_required"},
		{DecisionApproved, "approved"},
		{DecisionDenied, "denied"},
		{Decision(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
