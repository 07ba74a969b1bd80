package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	v := NewValidationError(100, "bad signature for %s", "abc")
	tr := NewTransientError("tip", errors.New("busy"))
	c := NewCollateralError(0, "%d confirmations", 19)

	wrapped := fmt.Errorf("announce: %w", v)

	if !IsValidation(wrapped) || IsTransient(wrapped) || IsCollateral(wrapped) {
		t.Fatalf("wrapped validation error misclassified")
	}
	if DoS(wrapped) != 100 {
		t.Fatalf("DoS should be 100, not %d", DoS(wrapped))
	}

	if !IsTransient(tr) || DoS(tr) != 0 {
		t.Fatalf("transient error misclassified")
	}
	if errors.Unwrap(tr) == nil {
		t.Fatalf("transient error should unwrap to its cause")
	}

	if !IsCollateral(c) || IsValidation(c) {
		t.Fatalf("collateral error misclassified")
	}

	if DoS(errors.New("plain")) != 0 {
		t.Fatalf("plain errors carry no DoS")
	}
}

func TestStoreErr(t *testing.T) {
	err := NewStoreErr("Registry", KeyNotFound, "abc:0")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}
	if IsStore(err, KeyAlreadyExists) {
		t.Fatalf("unexpected KeyAlreadyExists")
	}
	if err.Error() != "Registry, abc:0, Not Found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
