package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Retry budget for service-backed drivers. Client errors (bad requests,
// missing resources, auth failures) are never retried; only failures that
// a later attempt could plausibly survive are.
const (
	retryMaxAttempts     = 3
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	retryMaxElapsed      = 15 * time.Second
)

// withRetry runs fn under exponential backoff, retrying only transient
// failures. After the budget is exhausted a transient failure is wrapped
// in [ErrTransient] so callers can map it to a 503.
func withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = retryMaxElapsed

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retryMaxAttempts), ctx)

	err := backoff.Retry(func() error {
		if err := fn(); err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("vectorstore: %s: %w: %v", op, ErrTransient, err)
	}
	return fmt.Errorf("vectorstore: %s: %w", op, err)
}

// isTransient classifies an error as retryable. Network timeouts, refused
// connections, server-side 5xx responses, and the unavailable family of
// gRPC codes qualify; everything else is permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		case codes.NotFound, codes.InvalidArgument, codes.PermissionDenied,
			codes.Unauthenticated, codes.AlreadyExists, codes.FailedPrecondition:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporarily unavailable",
		"too many requests",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
