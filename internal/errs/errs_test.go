package errs

import (
	"errors"
	"testing"
)

func TestFromAPICode(t *testing.T) {
	tests := []struct {
		name string
		code int
		kind Kind
	}{
		{"network disconnect", -1, KindNetwork},
		{"bad credentials", -2, KindAuthentication},
		{"timeout", -7, KindNetwork},
		{"front inactive", -9, KindNetwork},
		{"bad broker id", -11, KindConfig},
		{"session timeout", -15, KindNetwork},
		{"unknown code falls back to API kind", 42, KindAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromAPICode(tt.code, "")
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("FromAPICode(%d) returned %T, want *Error", tt.code, err)
			}
			if e.Kind != tt.kind {
				t.Fatalf("FromAPICode(%d) kind = %v, want %v", tt.code, e.Kind, tt.kind)
			}
			if e.APICode != tt.code {
				t.Fatalf("APICode = %d, want %d", e.APICode, tt.code)
			}
		})
	}
}

func TestFromAPICodeKeepsRawMessage(t *testing.T) {
	err := FromAPICode(99, "CTP:某种错误")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Message != "CTP:某种错误" {
		t.Fatalf("message = %q, want raw engine message", e.Message)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindConnection, true},
		{KindNetwork, true},
		{KindTimeout, true},
		{KindAuthentication, false},
		{KindValidation, false},
		{KindState, false},
		{KindConfig, false},
	}
	for _, tt := range tests {
		err := New(tt.kind, "x")
		var e *Error
		errors.As(err, &e)
		if got := e.Retryable(); got != tt.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(KindConnection, cause, "front %s dropped", "market")
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error does not match cause")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindConnection {
		t.Fatalf("KindOf = %v, %v; want KindConnection, true", kind, ok)
	}
}

func TestKindOfForeignError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("KindOf should not match a plain error")
	}
}
