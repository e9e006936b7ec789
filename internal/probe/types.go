package probe

import (
	"context"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// CheckResult is the outcome of a single sub-probe.
type CheckResult struct {
	OK        bool
	LatencyMS float64
	Message   string
}

// Checker performs one health check against a target. Implementations must
// honor ctx cancellation; a timeout counts as failure, retries are a
// policy-level concern.
type Checker interface {
	Check(ctx context.Context, target domain.Target) CheckResult
}
