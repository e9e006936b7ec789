package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier delivers one message to one recipient identifier. Delivery is
// best effort: failures are logged by callers, never retried indefinitely.
type Notifier interface {
	Send(ctx context.Context, recipient, title, text string) error
}

// Multi fans a message out to every configured transport and reports all
// failures together.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, recipient, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, recipient, title, text))
	}
	return errs
}
