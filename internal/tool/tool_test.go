package tool

import (
	"testing"
)

func TestOutcome_Succeed(t *testing.T) {
	t.Parallel()

	out := Succeed("done")
	if !out.Success {
		t.Error("Succeed should set Success")
	}
	if out.Output != "done" {
		t.Errorf("Output = %q, want %q", out.Output, "done")
	}
	if out.Error != "" {
		t.Errorf("Error should be empty, got %q", out.Error)
	}
}

func TestOutcome_Fail(t *testing.T) {
	t.Parallel()

	out := Fail("boom")
	if out.Success {
		t.Error("Fail should clear Success")
	}
	if out.Output != "" {
		t.Errorf("Output should be empty, got %q", out.Output)
	}
	if out.Error != "boom" {
		t.Errorf("Error = %q, want %q", out.Error, "boom")
	}
}

func TestOutcome_Text(t *testing.T) {
	t.Parallel()

	if got := Succeed("result").Text(); got != "result" {
		t.Errorf("success Text = %q, want %q", got, "result")
	}
	if got := Fail("denied").Text(); got != "denied" {
		t.Errorf("failure Text = %q, want %q", got, "denied")
	}
}
