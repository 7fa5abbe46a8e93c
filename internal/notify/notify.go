package notify

import (
	"context"

	"recinto/internal/domain"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log. It is the
// fallback channel when no external delivery is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *LogNotifier) Notify(_ context.Context, note domain.Notification) {
	var event *zerolog.Event
	switch note.Level {
	case "warn":
		event = n.logger.Warn()
	case "error":
		event = n.logger.Error()
	default:
		event = n.logger.Info()
	}
	event.
		Str("code", note.Code).
		Int64("reservation_id", note.ReservationID).
		Msg(note.Text)
}
