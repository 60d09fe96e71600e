package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func Test_RateLimit_AllowsBurstThenRejects(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 3, slog.New(slog.DiscardHandler))
	defer stop()

	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	got429 := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/query", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i < 3 && rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst rejected: %d", i, rec.Code)
		}
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 response missing Retry-After")
			}
		}
	}
	if !got429 {
		t.Error("burst exhaustion never produced 429")
	}
}

func Test_RateLimit_IsolatesClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.New(slog.DiscardHandler))
	defer stop()

	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the first client's bucket.
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request from same IP should be limited, got %d", rec.Code)
	}

	// A different IP is unaffected.
	req2 := httptest.NewRequest(http.MethodGet, "/query", nil)
	req2.RemoteAddr = "10.0.0.2:5000"
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Errorf("other client rejected: %d", rec2.Code)
	}
}

func Test_RateLimit_EvictsStaleEntries(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.New(slog.DiscardHandler))
	defer stop()

	rl.getLimiter("10.0.0.1")
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.mu.Unlock()

	rl.evict()

	rl.mu.Lock()
	_, ok := rl.limiters["10.0.0.1"]
	rl.mu.Unlock()
	if ok {
		t.Error("stale entry survived eviction")
	}
}

func Test_ClientIP_StripsPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:5000", "10.0.0.1"},
		{"[::1]:8080", "[::1]"},
		{"nocolon", "nocolon"},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.addr
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}
