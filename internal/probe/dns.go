package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// DefaultResolver is used by origins that do not name one.
const DefaultResolver = "1.1.1.1:53"

// ResolverChecker asks a specific recursive resolver for the target's A
// record. Pointing each origin at a different resolver approximates probing
// from different vantages.
type ResolverChecker struct {
	Resolver string
	client   *dns.Client
}

func NewResolverChecker(resolver string, timeout time.Duration) *ResolverChecker {
	if resolver == "" {
		resolver = DefaultResolver
	}
	return &ResolverChecker{
		Resolver: resolver,
		client:   &dns.Client{Timeout: timeout},
	}
}

func (c *ResolverChecker) Check(ctx context.Context, target domain.Target) CheckResult {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(target.Host), dns.TypeA)
	m.RecursionDesired = true

	start := time.Now()
	resp, _, err := c.client.ExchangeContext(ctx, m, c.Resolver)
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return CheckResult{OK: false, LatencyMS: latency, Message: err.Error()}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return CheckResult{OK: false, LatencyMS: latency, Message: dns.RcodeToString[resp.Rcode]}
	}
	if len(resp.Answer) == 0 {
		return CheckResult{OK: false, LatencyMS: latency, Message: "no answer"}
	}
	return CheckResult{OK: true, LatencyMS: latency, Message: fmt.Sprintf("%d answers", len(resp.Answer))}
}
