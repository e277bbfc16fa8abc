package observation

import (
	"errors"
	"testing"
	"time"

	"github.com/careflow/careflow/internal/domain/catalog"
)

func strPtr(s string) *string { return &s }

func TestDeriveStatus_ResultMakesPreliminary(t *testing.T) {
	got := DeriveStatus(StatusRegistered, true, false)
	if got != StatusPreliminary {
		t.Errorf("expected Preliminary, got %s", got)
	}
}

func TestDeriveStatus_FinalStaysFinalWithResult(t *testing.T) {
	got := DeriveStatus(StatusFinal, true, false)
	if got != StatusFinal {
		t.Errorf("expected Final to stick, got %s", got)
	}
}

func TestDeriveStatus_AmendedFrom(t *testing.T) {
	got := DeriveStatus(StatusRegistered, false, true)
	if got != StatusAmended {
		t.Errorf("expected Amended, got %s", got)
	}
	// already Corrected observations are not re-flagged
	got = DeriveStatus(StatusCorrected, false, true)
	if got != StatusCorrected {
		t.Errorf("expected Corrected to stick, got %s", got)
	}
}

func TestDeriveStatus_FallbackRegistered(t *testing.T) {
	got := DeriveStatus(StatusPreliminary, false, false)
	if got != StatusRegistered {
		t.Errorf("expected Registered, got %s", got)
	}
}

func TestDeriveStatus_TerminalStatesUnchanged(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusEnteredInError, StatusUnknown, StatusFinal} {
		if got := DeriveStatus(s, false, false); got != s {
			t.Errorf("expected %s unchanged, got %s", s, got)
		}
	}
}

func TestValidateResult_NumericGrammar(t *testing.T) {
	accepted := []string{"5.2", "<10", ">100", "7", "..<<"}
	for _, v := range accepted {
		if err := ValidateResult(catalog.DataNumeric, v); err != nil {
			t.Errorf("expected %q accepted, got %v", v, err)
		}
	}
	rejected := []string{"5.2mg", "abc", "5 2", "-3"}
	for _, v := range rejected {
		err := ValidateResult(catalog.DataQuantity, v)
		if !errors.Is(err, ErrInvalidResultFormat) {
			t.Errorf("expected %q rejected with ErrInvalidResultFormat, got %v", v, err)
		}
	}
}

func TestValidateResult_EmptyIsNoResult(t *testing.T) {
	if err := ValidateResult(catalog.DataNumeric, ""); err != nil {
		t.Errorf("empty value must not be validated, got %v", err)
	}
}

func TestValidateResult_NonNumericTypesAcceptAnything(t *testing.T) {
	if err := ValidateResult(catalog.DataText, "free text with spaces"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateResult(catalog.DataSelect, "Positive"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDeriveResultTimes_StampsOnFirstResult(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Observation{Status: StatusPreliminary, ResultData: strPtr("7.5")}
	DeriveResultTimes(o, now)
	if o.TimeOfResult == nil || !o.TimeOfResult.Equal(now) {
		t.Errorf("expected time_of_result stamped to %v, got %v", now, o.TimeOfResult)
	}
}

func TestDeriveResultTimes_ResetOnSave(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := now.Add(-time.Hour)

	// save without a result blanks the stamp
	o := &Observation{Status: StatusRegistered, TimeOfResult: &prev}
	DeriveResultTimes(o, now)
	if o.TimeOfResult != nil {
		t.Errorf("expected time_of_result blanked, got %v", o.TimeOfResult)
	}

	// an already stamped save is reset too, not refreshed
	o = &Observation{Status: StatusPreliminary, ResultData: strPtr("7.5"), TimeOfResult: &prev}
	DeriveResultTimes(o, now)
	if o.TimeOfResult != nil {
		t.Errorf("expected reset-on-save to blank an existing stamp, got %v", o.TimeOfResult)
	}
}

func TestDeriveResultTimes_ApprovalFollowsFinal(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Observation{Status: StatusFinal}
	DeriveResultTimes(o, now)
	if o.TimeOfApproval == nil || !o.TimeOfApproval.Equal(now) {
		t.Errorf("expected time_of_approval stamped, got %v", o.TimeOfApproval)
	}

	prev := now.Add(-time.Hour)
	o = &Observation{Status: StatusPreliminary, TimeOfApproval: &prev}
	DeriveResultTimes(o, now)
	if o.TimeOfApproval != nil {
		t.Errorf("expected time_of_approval blanked off Final, got %v", o.TimeOfApproval)
	}
}

func TestHasResult(t *testing.T) {
	o := &Observation{}
	if o.HasResult() {
		t.Error("empty observation must have no result")
	}
	o.ResultText = strPtr("")
	if o.HasResult() {
		t.Error("empty string is no result")
	}
	o.ResultText = strPtr("clear")
	if !o.HasResult() {
		t.Error("expected result detected")
	}
	f := 1.5
	o = &Observation{ResultFloat: &f}
	if !o.HasResult() {
		t.Error("expected float result detected")
	}
}

func TestApplyLifecycle_EndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Observation{Status: StatusRegistered, ResultData: strPtr("7.5")}
	ApplyLifecycle(o, now)
	if o.Status != StatusPreliminary {
		t.Errorf("expected Preliminary, got %s", o.Status)
	}
	if o.TimeOfResult == nil {
		t.Error("expected time_of_result stamped")
	}
	if o.TimeOfApproval != nil {
		t.Error("expected no approval time off Final")
	}
}
