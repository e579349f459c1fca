package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestIsTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"io timeout", errors.New("read tcp: i/o timeout"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"syntax", errors.New("Code: 62. DB::Exception: Syntax error"), false},
		{"auth text", errors.New("Authentication failed: password is incorrect"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransportError(tc.err); got != tc.want {
				t.Fatalf("isTransportError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsAuthErrorByExceptionCode(t *testing.T) {
	for _, code := range []int32{193, 194, 497, 516} {
		err := &clickhouse.Exception{Code: code, Message: "denied"}
		if !isAuthError(err) {
			t.Fatalf("expected code %d to classify as auth error", code)
		}
		if isTransportError(err) {
			t.Fatalf("auth error with code %d must not be retryable", code)
		}
	}
}
