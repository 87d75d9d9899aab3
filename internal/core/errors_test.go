package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	err := ErrIO(CodeWriteExhausted, "3 attempts failed")
	want := "[io] WRITE_EXHAUSTED: 3 attempts failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := ErrIO(CodeWriteExhausted, "3 attempts failed").WithCause(errors.New("disk full"))
	if wrapped.Error() != want+" (disk full)" {
		t.Errorf("Error() with cause = %q", wrapped.Error())
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := ErrCorruption(CodeStateCorrupted, "checksum mismatch").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestDomainError_Is(t *testing.T) {
	a := ErrValidation(CodeMonotonicityViolation, "regression")
	b := ErrValidation(CodeMonotonicityViolation, "different message")
	c := ErrValidation(CodeBoundsViolation, "out of range")

	if !errors.Is(a, b) {
		t.Error("same category+code should match")
	}
	if errors.Is(a, c) {
		t.Error("different code should not match")
	}
}

func TestRetryableByCategory(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{ErrValidation(CodeBoundsViolation, "x"), false},
		{ErrState(CodeStateCorrupted, "x"), false},
		{ErrCorruption(CodeStateCorrupted, "x"), false},
		{ErrIO(CodeWriteVerifyFailed, "x"), true},
		{errors.New("plain"), false},
	}

	for i, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("case %d: IsRetryable(%v) = %v, want %v", i, tt.err, got, tt.retryable)
		}
	}
}

func TestGetCategory_WrappedError(t *testing.T) {
	inner := ErrIO(CodeWriteVerifyFailed, "readback mismatch")
	outer := fmt.Errorf("saving state: %w", inner)

	if got := GetCategory(outer); got != ErrCatIO {
		t.Errorf("GetCategory(wrapped) = %s, want %s", got, ErrCatIO)
	}
	if got := GetCategory(errors.New("plain")); got != ErrCatInternal {
		t.Errorf("GetCategory(plain) = %s, want %s", got, ErrCatInternal)
	}
}
