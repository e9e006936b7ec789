package probe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Prober runs one probe round for a (target, group) pair: one sub-probe per
// origin, each with its own timeout, aggregated against the group threshold.
type Prober struct {
	Logger  *zap.Logger
	Timeout time.Duration // per sub-probe

	// NewChecker builds the checker for an origin/target pair. Overridable
	// in tests; nil gets the production implementation.
	NewChecker func(origin domain.Origin, target domain.Target) Checker
}

func NewProber(logger *zap.Logger, timeout time.Duration) *Prober {
	return &Prober{Logger: logger, Timeout: timeout}
}

func (p *Prober) checkerFor(origin domain.Origin, target domain.Target) Checker {
	if p.NewChecker != nil {
		return p.NewChecker(origin, target)
	}
	switch target.Scheme {
	case "dns":
		return NewResolverChecker(origin.Resolver, p.Timeout)
	case "http", "https":
		return NewHTTPChecker(p.Timeout)
	default:
		return NewTCPChecker()
	}
}

// Probe fans out one sub-probe per origin and collects until all finish or
// ctx expires; sub-probes cut off by the deadline count as failed. The
// verdict is down iff failed origins >= the group threshold.
func (p *Prober) Probe(ctx context.Context, target domain.Target, group domain.MonitoringGroup) domain.HealthVerdict {
	origins := group.Origins
	if len(origins) == 0 {
		origins = DefaultOrigins()
	}

	results := make([]domain.OriginResult, len(origins))
	var wg sync.WaitGroup
	for i, origin := range origins {
		wg.Add(1)
		go func(i int, origin domain.Origin) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, p.Timeout)
			defer cancel()

			out := p.checkerFor(origin, target).Check(cctx, target)
			results[i] = domain.OriginResult{
				Origin:    origin.Name,
				OK:        out.OK,
				LatencyMS: out.LatencyMS,
				Message:   out.Message,
			}
		}(i, origin)
	}
	wg.Wait()

	v := domain.HealthVerdict{
		Target:    target.Key(),
		GroupID:   group.ID,
		Origins:   results,
		CheckedAt: time.Now().UTC(),
	}
	threshold := group.Threshold
	if threshold < 1 {
		threshold = 1
	}
	v.Up = v.FailedOrigins() < threshold

	p.Logger.Debug("probe_round",
		zap.String("target", string(v.Target)),
		zap.String("group", group.ID),
		zap.Bool("up", v.Up),
		zap.Int("failed_origins", v.FailedOrigins()),
		zap.Int("threshold", threshold),
	)
	return v
}
