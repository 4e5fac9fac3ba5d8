package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/raspapremio/prize-notifier/internal/domain"
)

// WakeupMessage tells workers that a notification_queue entry is due.
// The row in notification_queue stays the source of truth; the message only
// shortens the wait until the next sweep.
type WakeupMessage struct {
	EntryID          string                  `json:"entryId"`
	NotificationType domain.NotificationType `json:"notificationType"`
	ScheduledFor     time.Time               `json:"scheduledFor"`
	CorrelationID    string                  `json:"correlationId,omitempty"`
}

func (m WakeupMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("entryId is required")
	}
	if !m.NotificationType.IsValid() {
		return fmt.Errorf("invalid notification type %q", m.NotificationType)
	}
	return nil
}

// WakeupFromEntry builds the wake-up message for a freshly enqueued entry.
func WakeupFromEntry(entry *domain.QueueEntry) WakeupMessage {
	return WakeupMessage{
		EntryID:          entry.ID,
		NotificationType: entry.NotificationType,
		ScheduledFor:     entry.ScheduledFor,
	}
}
