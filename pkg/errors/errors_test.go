package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := New(ErrCodeStoreWrite, "metadata service returned 503").
		WithComponent("metad").
		WithOperation("createDirectory").
		WithKey("/S/ab")

	msg := err.Error()
	for _, want := range []string{"[metad:createDirectory]", "STORE_WRITE", "key=/S/ab"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigValidation, CategoryConfiguration},
		{ErrCodeConnectionFailed, CategoryConnection},
		{ErrCodeSRVLookup, CategoryConnection},
		{ErrCodeNoBackends, CategoryConnection},
		{ErrCodeEntryExists, CategoryStore},
		{ErrCodeStoreWrite, CategoryStore},
		{ErrCodeInternalError, CategoryInternal},
	}
	for _, tc := range cases {
		if got := CategoryOf(tc.code); got != tc.want {
			t.Errorf("CategoryOf(%s) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestClassificationThroughWrapping(t *testing.T) {
	t.Parallel()

	base := New(ErrCodeEntryExists, "entry already exists").WithKey("/S/ab")
	wrapped := fmt.Errorf("createDirectory /S/ab: %w", base)

	if !IsConflict(wrapped) {
		t.Error("IsConflict() = false for wrapped ENTRY_EXISTS")
	}
	if IsFatal(wrapped) {
		t.Error("IsFatal() = true for conflict error")
	}
	if got := CodeOf(wrapped); got != ErrCodeEntryExists {
		t.Errorf("CodeOf() = %s, want ENTRY_EXISTS", got)
	}
}

func TestIsMatchesOnCode(t *testing.T) {
	t.Parallel()

	a := New(ErrCodeConnectionFailed, "a").WithCause(stderrors.New("dial refused"))
	b := New(ErrCodeConnectionFailed, "b")

	if !stderrors.Is(a, b) {
		t.Error("errors.Is() = false for same code")
	}
	if !IsFatal(a) {
		t.Error("IsFatal() = false for connection error")
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection reset")
	err := New(ErrCodeConnectionFailed, "write failed").WithCause(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() does not reach the cause")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	t.Parallel()

	if got := CodeOf(stderrors.New("plain")); got != ErrCodeInternalError {
		t.Errorf("CodeOf(plain error) = %s, want INTERNAL_ERROR", got)
	}
	if IsConflict(stderrors.New("plain")) {
		t.Error("IsConflict(plain error) = true")
	}
}
