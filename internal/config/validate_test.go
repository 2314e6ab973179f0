package config

import (
	"strings"
	"testing"
	"time"

	"github.com/wardenproj/warden/internal/core"
	"gopkg.in/yaml.v3"
)

type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func TestValidate_AcceptsKnownModules(t *testing.T) {
	id := t.Name() + ".mod"
	core.RegisterModule(&stubModule{id: id})

	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	neg := -3
	tests := []struct {
		name        string
		cfg         *Config
		wantMention []string
	}{
		{
			name:        "missing version",
			cfg:         &Config{},
			wantMention: []string{"version"},
		},
		{
			name:        "unsupported version",
			cfg:         &Config{Version: "99"},
			wantMention: []string{"unsupported"},
		},
		{
			name: "unregistered module",
			cfg: &Config{
				Version: "1",
				Modules: map[string]yaml.Node{"unknown.mod": {}},
			},
			wantMention: []string{"unknown.mod"},
		},
		{
			name: "every unregistered module is named",
			cfg: &Config{
				Version: "1",
				Modules: map[string]yaml.Node{"bad.one": {}, "bad.two": {}},
			},
			wantMention: []string{"bad.one", "bad.two"},
		},
		{
			name: "made-up autonomy level",
			cfg: &Config{
				Version:  "1",
				Security: SecurityConfig{Autonomy: "yolo"},
			},
			wantMention: []string{"autonomy"},
		},
		{
			name: "negative action budget",
			cfg: &Config{
				Version:  "1",
				Security: SecurityConfig{MaxActionsPerHour: &neg},
			},
			wantMention: []string{"max_actions_per_hour"},
		},
		{
			name: "made-up sensitivity level",
			cfg: &Config{
				Version: "1",
				Security: SecurityConfig{
					ToolSensitivity: map[string]string{"browser_open": "extreme"},
				},
			},
			wantMention: []string{"browser_open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if err == nil {
				t.Fatal("config accepted")
			}
			for _, want := range tt.wantMention {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %v does not mention %q", err, want)
				}
			}
		})
	}
}

func TestValidate_ZeroActionBudgetIsLockdownNotError(t *testing.T) {
	zero := 0
	cfg := &Config{
		Version:  "1",
		Security: SecurityConfig{MaxActionsPerHour: &zero},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("a zero budget is a valid lockdown setting: %v", err)
	}
}

func TestSecurityConfig_Defaults(t *testing.T) {
	var sec SecurityConfig
	sec.applyDefaults()

	if sec.Autonomy != "supervised" {
		t.Errorf("Autonomy = %q, want supervised", sec.Autonomy)
	}
	if sec.ApprovalTimeout != 120*time.Second {
		t.Errorf("ApprovalTimeout = %v, want 120s", sec.ApprovalTimeout)
	}
	if sec.MaxActionsPerHour != nil {
		t.Error("MaxActionsPerHour should default to nil (no cap)")
	}
}
