package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeUnknownType, "unknown struct type")
		if err.Error() != "[UNKNOWN_TYPE] unknown struct type" {
			t.Errorf("expected [UNKNOWN_TYPE] unknown struct type, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk I/O error")
		err := Wrap(original, CodeStorage, "insert translation")
		expected := "[STORAGE_ERROR] insert translation: disk I/O error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "temperature out of range")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
		if IsCode(errors.New("plain"), CodeInternal) {
			t.Error("expected plain error to carry no code")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeNotFound, "struct missing"), CtxStructID, 42)
		if !IsCode(err, CodeNotFound) {
			t.Fatalf("expected code to survive AddContext, got %v", err)
		}
		if !strings.Contains(err.Error(), "struct_id:42") {
			t.Errorf("expected context in message, got %s", err.Error())
		}

		plain := AddContext(errors.New("boom"), CtxModel, "m")
		if !IsCode(plain, CodeInternal) {
			t.Errorf("expected plain error to be wrapped as internal, got %v", plain)
		}
	})
}
