package provider

import (
	"context"
	"errors"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// Zone is a DNS zone as the provider reports it.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is the provider's view of one DNS record.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// Provider is the external DNS API collaborator.
type Provider interface {
	ListZones(ctx context.Context) ([]Zone, error)
	GetRecord(ctx context.Context, ref domain.RecordRef) (*Record, error)
	UpdateRecord(ctx context.Context, ref domain.RecordRef, value string) error
}

// ErrNotFound reports a zone or record the provider does not know.
var ErrNotFound = errors.New("provider: not found")

// permanentError marks failures that retrying cannot fix (bad token,
// missing record). The mutator alerts on these instead of backing off.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) is non-retryable.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, ErrNotFound)
}
