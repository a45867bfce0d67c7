package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock("insufficient stock for %s", "Tomatoes"))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("did not expect ErrNotFound to match")
	}
}

func TestCodeOfAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    Code
		message string
	}{
		{name: "taxonomy", err: NotFound("order %s not found", "o-1"), code: CodeNotFound, message: "order o-1 not found"},
		{name: "wrapped", err: fmt.Errorf("get: %w", InvalidState("bad")), code: CodeInvalidState, message: "bad"},
		{name: "foreign", err: errors.New("pq: connection reset"), code: CodeInternal, message: "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, got)
			}
			if got := Message(tt.err); got != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeUnauthorized:      http.StatusForbidden,
		CodeInvalidState:      http.StatusConflict,
		CodeInsufficientStock: http.StatusConflict,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}
