package core

import (
	"context"
	"errors"
	"testing"
)

// lifecycleModule records the order of Start/Stop calls in a shared slice.
type lifecycleModule struct {
	id       ModuleID
	order    *[]string
	startErr error
	stopErr  error
}

func (m *lifecycleModule) ModuleInfo() ModuleInfo {
	id := m.id
	return ModuleInfo{
		ID:  id,
		New: func() Module { return m },
	}
}

func (m *lifecycleModule) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	*m.order = append(*m.order, "start:"+string(m.id))
	return nil
}

func (m *lifecycleModule) Stop(_ context.Context) error {
	*m.order = append(*m.order, "stop:"+string(m.id))
	return m.stopErr
}

func TestApp_StartStopOrder(t *testing.T) {
	var order []string
	app := NewApp(NewAppContext(nil, "/data"))
	app.AppendModule("a", &lifecycleModule{id: "a", order: &order})
	app.AppendModule("b", &lifecycleModule{id: "b", order: &order})

	if err := app.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	app.Stop()

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestApp_StartFailure_StopsStarted(t *testing.T) {
	var order []string
	app := NewApp(NewAppContext(nil, "/data"))
	app.AppendModule("a", &lifecycleModule{id: "a", order: &order})
	app.AppendModule("b", &lifecycleModule{id: "b", order: &order, startErr: errors.New("boom")})

	err := app.Start()
	if err == nil {
		t.Fatal("expected error from failing module")
	}

	// a started, b failed; a must have been stopped in unwind.
	want := []string{"start:a", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestApp_Stop_SkipsUnstarted(t *testing.T) {
	var order []string
	app := NewApp(NewAppContext(nil, "/data"))
	app.AppendModule("a", &lifecycleModule{id: "a", order: &order})

	// Never started — Stop must not call the module.
	app.Stop()
	if len(order) != 0 {
		t.Errorf("expected no lifecycle calls, got %v", order)
	}
}

func TestApp_Module(t *testing.T) {
	var order []string
	app := NewApp(NewAppContext(nil, "/data"))
	mod := &lifecycleModule{id: "a", order: &order}
	app.AppendModule("a", mod)

	got, ok := app.Module("a")
	if !ok {
		t.Fatal("expected module to resolve")
	}
	if got != Module(mod) {
		t.Error("resolved module is not the appended instance")
	}
	if _, ok := app.Module("missing"); ok {
		t.Error("expected miss for unknown ID")
	}
}

func TestApp_LoadModules_UnknownFails(t *testing.T) {
	t.Cleanup(resetRegistry)

	app := NewApp(NewAppContext(nil, "/data"))
	if err := app.LoadModules([]string{"no.such.module"}); err == nil {
		t.Fatal("expected error for unknown module ID")
	}
}
