package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func Test_IsTransient_Classification(t *testing.T) {
	t.Parallel()

	transient := []error{
		timeoutErr{},
		status.Error(codes.Unavailable, "server draining"),
		status.Error(codes.ResourceExhausted, "rate limited"),
		fmt.Errorf("dial tcp: connection refused"),
		fmt.Errorf("upstream returned status 503"),
	}
	for _, err := range transient {
		if !isTransient(err) {
			t.Errorf("%v should be transient", err)
		}
	}

	permanent := []error{
		nil,
		context.Canceled,
		context.DeadlineExceeded,
		status.Error(codes.NotFound, "no such collection"),
		status.Error(codes.InvalidArgument, "bad vector"),
		status.Error(codes.Unauthenticated, "bad api key"),
		fmt.Errorf("index already exists"),
		errors.New("malformed request body"),
	}
	for _, err := range permanent {
		if isTransient(err) {
			t.Errorf("%v should be permanent", err)
		}
	}
}

func Test_WithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withRetry(context.Background(), "upsert", func() error {
		calls++
		return status.Error(codes.InvalidArgument, "bad vector")
	})
	if err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Errorf("permanent errors must fail on first attempt, got %d calls", calls)
	}
	if errors.Is(err, ErrTransient) {
		t.Error("permanent failure must not be tagged transient")
	}
}

func Test_WithRetry_TransientErrorRetriesThenWraps(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withRetry(context.Background(), "query", func() error {
		calls++
		return timeoutErr{}
	})
	if err == nil {
		t.Fatal("want error after retry budget")
	}
	if calls != retryMaxAttempts+1 {
		t.Errorf("want %d attempts, got %d", retryMaxAttempts+1, calls)
	}
	if !errors.Is(err, ErrTransient) {
		t.Errorf("exhausted transient failure should wrap ErrTransient: %v", err)
	}
}

func Test_WithRetry_RecoversMidway(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withRetry(context.Background(), "upsert", func() error {
		calls++
		if calls < 3 {
			return status.Error(codes.Unavailable, "draining")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("want success after recovery, got %v", err)
	}
	if calls != 3 {
		t.Errorf("want 3 attempts, got %d", calls)
	}
}

func Test_WithRetry_HonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- withRetry(ctx, "query", func() error {
			calls++
			if calls == 1 {
				cancel()
			}
			return timeoutErr{}
		})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("want error after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop ignored context cancellation")
	}
}
