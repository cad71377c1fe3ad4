package gatewayerr

import (
	"net/http"
	"testing"
	"time"
)

func TestWithRetryAfterLeavesOriginalUntouched(t *testing.T) {
	base := New(RateLimited, "rate limit exceeded", nil)
	derived := base.WithRetryAfter(2 * time.Second)

	if base.RetryAfter != 0 {
		t.Fatalf("expected original error untouched, got RetryAfter=%v", base.RetryAfter)
	}
	if derived.RetryAfter != 2*time.Second {
		t.Fatalf("expected derived RetryAfter=2s, got %v", derived.RetryAfter)
	}
}

func TestRateLimitedMapsTo429(t *testing.T) {
	if RateLimited.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", RateLimited.StatusCode())
	}
}

func TestOnlyUpstreamConnectionIsRetryable(t *testing.T) {
	for kind, want := range map[Kind]bool{
		UpstreamConnection: true,
		UpstreamTimeout:    false,
		UpstreamAuth:       false,
		RateLimited:        false,
	} {
		if got := kind.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", kind, got, want)
		}
	}
}
