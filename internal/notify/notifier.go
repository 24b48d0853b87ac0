// Package notify delivers owner notifications. The current transport writes
// to the structured log; callers treat delivery as fire-and-forget either
// way, so swapping in a mail or webhook transport changes nothing upstream.
package notify

import (
	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
)

// LogNotifier implements Notifier against the structured log.
type LogNotifier struct {
	logger arbor.ILogger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger arbor.ILogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ interfaces.Notifier = (*LogNotifier)(nil)

// Notify records the notification in the log.
func (n *LogNotifier) Notify(user, subject, body string) error {
	n.logger.Info().
		Str("user", user).
		Str("subject", subject).
		Str("body", body).
		Msg("Notification")
	return nil
}
