package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// HTTPChecker issues a GET against the target and treats 2xx/3xx as up.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target domain.Target) CheckResult {
	url := fmt.Sprintf("%s://%s/", target.Scheme, target.Addr())

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CheckResult{OK: false, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{OK: false, LatencyMS: latency, Message: err.Error()}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 400
	return CheckResult{OK: ok, LatencyMS: latency, Message: resp.Status}
}
