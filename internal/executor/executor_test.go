package executor

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestExecutor(t *testing.T, open func() (*sql.DB, error)) (*Executor, *[]time.Duration) {
	t.Helper()

	var sleeps []time.Duration
	e := New(Config{Instance: "test", MaxRetries: 2, RetryDelay: 0}, nil)
	e.open = open
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return e, &sleeps
}

func TestExecuteTransportErrorExhaustsRetries(t *testing.T) {
	attempts := 0
	e, sleeps := newTestExecutor(t, func() (*sql.DB, error) {
		attempts++
		return nil, errors.New("dial tcp 10.0.0.1:9000: connection refused")
	})

	outcome := e.Execute(context.Background(), "SELECT 1")

	if outcome.Err == nil {
		t.Fatal("expected non-nil outcome error after retry exhaustion")
	}
	if len(outcome.Rows) != 0 {
		t.Fatalf("expected zero rows, got %d", len(outcome.Rows))
	}
	if attempts != 3 {
		t.Fatalf("expected 1 initial + 2 retries = 3 attempts, got %d", attempts)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 inter-attempt sleeps, got %d", len(*sleeps))
	}
}

func TestExecuteQueryErrorFailsFast(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectQuery("SELECT bogus").
		WillReturnError(errors.New("Code: 62. DB::Exception: Syntax error"))

	opens := 0
	e, sleeps := newTestExecutor(t, func() (*sql.DB, error) {
		opens++
		return db, nil
	})

	outcome := e.Execute(context.Background(), "SELECT bogus")

	if outcome.Err == nil {
		t.Fatal("expected query error in outcome")
	}
	if opens != 1 {
		t.Fatalf("expected no reconnect for query errors, got %d opens", opens)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no retry sleeps for query errors, got %d", len(*sleeps))
	}
}

func TestExecuteReturnsRowsAndColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, total_rows FROM system.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "total_rows"}).
			AddRow("events", int64(1200)).
			AddRow("sessions", int64(88)))

	e, _ := newTestExecutor(t, func() (*sql.DB, error) { return db, nil })

	outcome := e.Execute(context.Background(), "SELECT name, total_rows FROM system.tables")

	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if len(outcome.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(outcome.Rows))
	}
	if len(outcome.Columns) != 2 || outcome.Columns[0] != "name" {
		t.Fatalf("unexpected columns: %v", outcome.Columns)
	}
	if outcome.DurationMs < 0 {
		t.Fatalf("expected non-negative duration, got %f", outcome.DurationMs)
	}
}

func TestExecuteRecordsDurationOnFailure(t *testing.T) {
	e, _ := newTestExecutor(t, func() (*sql.DB, error) {
		return nil, errors.New("connection refused")
	})

	outcome := e.Execute(context.Background(), "SELECT 1")
	if outcome.Err == nil {
		t.Fatal("expected error")
	}
	if outcome.DurationMs < 0 {
		t.Fatalf("expected duration recorded on failure, got %f", outcome.DurationMs)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	opens := 0
	e, _ := newTestExecutor(t, func() (*sql.DB, error) {
		opens++
		return db, nil
	})

	for i := 0; i < 3; i++ {
		if err := e.Connect(); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
	}
	if opens != 1 {
		t.Fatalf("expected a single open, got %d", opens)
	}

	e.Close()
	e.Close() // second close is a no-op
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	e, _ := newTestExecutor(t, func() (*sql.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	})

	outcome := e.Execute(ctx, "SELECT 1")
	if outcome.Err == nil {
		t.Fatal("expected context error")
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts on cancelled context, got %d", attempts)
	}
}
