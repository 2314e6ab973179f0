package config

import (
	"errors"
	"fmt"

	"github.com/wardenproj/warden/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, checks that all referenced module IDs
// exist in the registry, and validates the security policy settings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateSecurity(&cfg.Security)...)

	return errors.Join(errs...)
}

func validateSecurity(sec *SecurityConfig) []error {
	var errs []error

	switch sec.Autonomy {
	case "", "read_only", "supervised", "full":
	default:
		errs = append(errs, fmt.Errorf(
			"config: security.autonomy: unknown level %q (supported: read_only, supervised, full)",
			sec.Autonomy,
		))
	}

	if sec.MaxActionsPerHour != nil && *sec.MaxActionsPerHour < 0 {
		errs = append(errs, fmt.Errorf(
			"config: security.max_actions_per_hour must not be negative, got %d",
			*sec.MaxActionsPerHour,
		))
	}

	if sec.ApprovalTimeout < 0 {
		errs = append(errs, errors.New("config: security.approval_timeout must not be negative"))
	}

	for name, level := range sec.ToolSensitivity {
		switch level {
		case "low", "high":
		default:
			errs = append(errs, fmt.Errorf(
				"config: security.tool_sensitivity[%q]: unknown sensitivity %q (supported: low, high)",
				name, level,
			))
		}
	}

	return errs
}
