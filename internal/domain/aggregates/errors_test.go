package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatsOpMessageAndCode(t *testing.T) {
	err := NewError(CodeConflict, "Program.PlanLedger.CommitCycle", "active version changed", nil)
	if got, want := err.Error(), "Program.PlanLedger.CommitCycle: active version changed [conflict]"; got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
	if got := NewError(CodeInternal, "", "", nil).Error(); got != "[internal]" {
		t.Fatalf("bare code: got=%q", got)
	}
}

func TestCodeOfSeesThroughWrapping(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := fmt.Errorf("commit cycle: %w", Wrap(CodeRetryable, "op", cause))
	if CodeOf(err) != CodeRetryable || !errors.Is(err, cause) {
		t.Fatalf("wrapped code lost: %v", err)
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestTransientAndPermanent(t *testing.T) {
	cases := []struct {
		code      ErrorCode
		transient bool
		permanent bool
	}{
		{CodeRetryable, true, false},
		{CodeConflict, true, false},
		{CodeValidation, false, true},
		{CodeNotFound, false, true},
		{CodeInvariantViolation, false, true},
		{CodePreconditionFailed, false, false},
		{CodeInternal, false, false},
	}
	for _, tc := range cases {
		err := NewError(tc.code, "op", "x", nil)
		if Transient(err) != tc.transient || Permanent(err) != tc.permanent {
			t.Fatalf("%s: want transient=%v permanent=%v", tc.code, tc.transient, tc.permanent)
		}
	}
	if Transient(errors.New("plain")) || Permanent(errors.New("plain")) {
		t.Fatalf("uncoded errors are neither transient nor permanent")
	}
}
