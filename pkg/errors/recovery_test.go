package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "RandomForestClassifier.Fit")
		panic("index out of range")
	}

	err := fit()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "RandomForestClassifier.Fit" {
		t.Errorf("Operation = %q", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if want := "panic in RandomForestClassifier.Fit: index out of range"; panicErr.Error() != want {
		t.Errorf("Error() = %q, want %q", panicErr.Error(), want)
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include the stack trace")
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "fit")
		return nil
	}
	if err := fit(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	fit := func() (err error) {
		defer Recover(&err, "fit")
		err = original
		panic("after error")
	}

	err := fit()
	if !strings.Contains(err.Error(), "panic in fit") {
		t.Errorf("missing panic info: %v", err)
	}
	if !errors.Is(err, original) {
		t.Error("original error should stay reachable")
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "error", fn: func() error { return ErrEmptyData }, wantErr: true},
		{name: "panic", fn: func() error { panic(42) }, wantErr: true, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("train", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeExecute() error = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("PanicError = %v, want %v", got, tt.wantPanic)
			}
		})
	}
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("bench", func() error { return nil })
	}
}
