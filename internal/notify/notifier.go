// Package notify is the fire-and-forget push dispatch surface. Actual
// delivery (APNs, FCM) lives outside this service; callers hand over a
// payload and move on.
package notify

import (
	"context"
	"log/slog"
)

// Payload is one push notification.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier dispatches a notification to one user. Implementations must not
// block the caller on delivery and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, userID string, p Payload)
}

// LogNotifier records dispatches to the log. Stands in for a real push
// gateway in development and tests.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID string, p Payload) {
	n.log.Info("push notification dispatched", "user_id", userID, "title", p.Title, "body", p.Body)
}
