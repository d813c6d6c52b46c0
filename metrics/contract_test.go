package metrics

import (
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestHTTPStatusClassAndOutcome(t *testing.T) {
	tests := []struct {
		status     int
		wantClass  string
		wantResult string
	}{
		{status: 200, wantClass: "2xx", wantResult: OutcomeSuccess},
		{status: 302, wantClass: "3xx", wantResult: OutcomeSuccess},
		{status: 404, wantClass: "4xx", wantResult: OutcomeError},
		{status: 503, wantClass: "5xx", wantResult: OutcomeError},
		{status: 99, wantClass: "unknown", wantResult: OutcomeError},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			if got := HTTPStatusClass(tc.status); got != tc.wantClass {
				t.Fatalf("HTTPStatusClass() = %q, want %q", got, tc.wantClass)
			}
			if got := HTTPOutcome(tc.status); got != tc.wantResult {
				t.Fatalf("HTTPOutcome() = %q, want %q", got, tc.wantResult)
			}
		})
	}
}

func TestGRPCStatusClassAndOutcome(t *testing.T) {
	if got := GRPCStatusClass(codes.OK); got != "ok" {
		t.Fatalf("GRPCStatusClass(OK) = %q, want ok", got)
	}
	if got := GRPCStatusClass(codes.InvalidArgument); got != "invalidargument" {
		t.Fatalf("GRPCStatusClass(INVALID_ARGUMENT) = %q, want invalidargument", got)
	}
	if got := GRPCOutcome(codes.OK); got != OutcomeSuccess {
		t.Fatalf("GRPCOutcome(OK) = %q, want %q", got, OutcomeSuccess)
	}
	if got := GRPCOutcome(codes.Internal); got != OutcomeError {
		t.Fatalf("GRPCOutcome(INTERNAL) = %q, want %q", got, OutcomeError)
	}
}
