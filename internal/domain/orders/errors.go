package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrMissingTemplateReference blocks order-detail construction and
	// fan-out when a request has no template type/id.
	ErrMissingTemplateReference = errors.New("order template type and order template are mandatory")

	// ErrMissingMedicationReference blocks request creation for a drug line
	// with neither a catalog medication link nor an item code.
	ErrMissingMedicationReference = errors.New("drug line has no medication reference")

	// ErrPaymentRequired blocks fan-out while billing policy demands prior
	// invoicing; the request's own status is untouched.
	ErrPaymentRequired = errors.New("service request must be invoiced before proceeding")
)

// CancelFailure records one request a cascade could not cancel.
type CancelFailure struct {
	RequestID uuid.UUID
	Err       error
}

// CancelCascadeError aggregates per-request cancellation failures. The
// cascade attempts every request before reporting, never short-circuits.
type CancelCascadeError struct {
	OrderGroup uuid.UUID
	Failures   []CancelFailure
}

func (e *CancelCascadeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cancel cascade for order group %s: %d request(s) failed", e.OrderGroup, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.RequestID, f.Err)
	}
	return b.String()
}

func (e *CancelCascadeError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
