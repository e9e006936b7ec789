package probe

import "github.com/hamed0406/dnsfailover/internal/domain"

// DefaultOrigins backs monitoring groups that don't define their own
// vantage set. Names are region-coded; resolvers are public anycast
// services so dns-scheme targets still get some geographic spread.
func DefaultOrigins() []domain.Origin {
	return []domain.Origin{
		{Name: "us-cloudflare", Resolver: "1.1.1.1:53"},
		{Name: "us-google", Resolver: "8.8.8.8:53"},
		{Name: "eu-quad9", Resolver: "9.9.9.9:53"},
	}
}
