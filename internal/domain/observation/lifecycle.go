package observation

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/careflow/careflow/internal/domain/catalog"
)

// ErrInvalidResultFormat is returned when a numeric-typed observation is
// given a result outside the numeric grammar. No state is mutated.
var ErrInvalidResultFormat = errors.New("invalid result format")

// numericResult accepts digits, decimal points and comparators, so lab
// values like "<5.0" or ">100" pass. Strings without any digit ("..<<")
// also pass; that looseness is kept on purpose for compatibility with
// existing stored results.
var numericResult = regexp.MustCompile(`^[0-9.<>]+$`)

// ValidateResult checks a candidate value against the permitted data type.
// Only Quantity and Numeric carry a grammar; every other type accepts any
// string. Empty values are "no result" and are never validated.
func ValidateResult(dataType catalog.DataType, value string) error {
	if value == "" {
		return nil
	}
	switch dataType {
	case catalog.DataQuantity, catalog.DataNumeric:
		if !numericResult.MatchString(value) {
			return fmt.Errorf("%w: %q is not a valid %s result", ErrInvalidResultFormat, value, dataType)
		}
	}
	return nil
}

// DeriveStatus computes the status an observation takes on save.
//
//  1. A result on a non-Final observation makes it Preliminary.
//  2. An amended observation that is not already Amended or Corrected
//     becomes Amended.
//  3. Anything not in a terminal state falls back to Registered.
//  4. Terminal states stick.
func DeriveStatus(current Status, hasResult bool, amendedFrom bool) Status {
	switch {
	case hasResult && current != StatusFinal:
		return StatusPreliminary
	case amendedFrom && current != StatusAmended && current != StatusCorrected:
		return StatusAmended
	case !terminalStatuses[current]:
		return StatusRegistered
	default:
		return current
	}
}

// DeriveResultTimes reapplies the result/approval timestamps on every save.
// This is reset-on-save, not fill-if-missing: time_of_result is stamped only
// when it was unset and a result exists, and blanked on every other save.
// time_of_approval follows the same rule keyed on status Final.
func DeriveResultTimes(o *Observation, now time.Time) {
	if o.TimeOfResult == nil && o.HasResult() {
		t := now
		o.TimeOfResult = &t
	} else {
		o.TimeOfResult = nil
	}

	if o.Status == StatusFinal && o.TimeOfApproval == nil {
		t := now
		o.TimeOfApproval = &t
	} else {
		o.TimeOfApproval = nil
	}
}

// ApplyLifecycle runs the full save-time derivation: status first, then the
// timestamps that depend on it.
func ApplyLifecycle(o *Observation, now time.Time) {
	o.Status = DeriveStatus(o.Status, o.HasResult(), o.AmendedFrom != nil)
	DeriveResultTimes(o, now)
}
