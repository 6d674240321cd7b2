package focus

import (
	"context"

	"github.com/jiangjiax/goalify-client/internal/logging"
)

// Notifier delivers the countdown-complete alert. Delivery failures are
// swallowed by the manager; timer state never depends on them.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes the alert to the log. Platform layers substitute a
// real local-notification implementation.
type LogNotifier struct {
	Log logging.Logger
}

func (n LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.Log.Info(ctx, "notification", "title", title, "body", body)
	return nil
}
