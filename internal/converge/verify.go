package converge

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Verifier asks a public resolver whether an applied record actually serves
// the new value yet. Purely informational: resolver caches lag the
// authoritative answer, so a mismatch is logged, never acted on.
type Verifier struct {
	Logger   *zap.Logger
	Resolver string
	client   *dns.Client
}

func NewVerifier(logger *zap.Logger, resolver string) *Verifier {
	if resolver == "" {
		return nil
	}
	return &Verifier{
		Logger:   logger,
		Resolver: resolver,
		client:   &dns.Client{Timeout: 3 * time.Second},
	}
}

func (v *Verifier) Verify(ctx context.Context, ref domain.RecordRef, want string) {
	qtype, ok := dns.StringToType[ref.Type]
	if !ok {
		return
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(ref.Name), qtype)
	m.RecursionDesired = true

	resp, _, err := v.client.ExchangeContext(ctx, m, v.Resolver)
	if err != nil {
		v.Logger.Debug("verify_query_failed", zap.String("record", ref.Key()), zap.Error(err))
		return
	}

	for _, rr := range resp.Answer {
		var got string
		switch a := rr.(type) {
		case *dns.A:
			got = a.A.String()
		case *dns.AAAA:
			got = a.AAAA.String()
		case *dns.CNAME:
			got = a.Target
		}
		if got == want || got == dns.Fqdn(want) {
			v.Logger.Debug("verify_propagated", zap.String("record", ref.Key()), zap.String("value", want))
			return
		}
	}
	v.Logger.Info("verify_not_propagated",
		zap.String("record", ref.Key()),
		zap.String("resolver", v.Resolver),
		zap.String("want", want),
	)
}
