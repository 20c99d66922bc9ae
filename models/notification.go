package models

import (
	"encoding/json"
	"time"
)

// NotificationStatus is the delivery state of a queued notification.
type NotificationStatus string

const (
	NotificationStatusPending          NotificationStatus = "pending"
	NotificationStatusProcessing       NotificationStatus = "processing"
	NotificationStatusSent             NotificationStatus = "sent"
	NotificationStatusFailed           NotificationStatus = "failed"
	NotificationStatusPermanentFailure NotificationStatus = "permanent_failure"
)

// IsTerminal reports whether the status is final and eligible for retention
// cleanup. Pending and processing rows are never purged.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed || s == NotificationStatusPermanentFailure
}

// Notification is one durable outbound message. Rows survive process
// restarts; delivery state lives entirely in the database.
type Notification struct {
	ID         int64  `db:"id"`
	TelegramID int64  `db:"telegram_id"`
	Message    string `db:"message"`
	ParseMode  string `db:"parse_mode"`

	Metadata json.RawMessage `db:"metadata"`

	Status      NotificationStatus `db:"status"`
	Attempts    int                `db:"attempts"`
	MaxAttempts int                `db:"max_attempts"`
	LastError   *string            `db:"last_error"`

	ScheduledAt  time.Time  `db:"scheduled_at"`
	ProcessingAt *time.Time `db:"processing_at"`
	SentAt       *time.Time `db:"sent_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// NotificationMetadata is the known shape of the metadata payload.
type NotificationMetadata struct {
	PhotoURL string `json:"photo_url,omitempty"`
}

// PhotoURL extracts the photo URL from metadata, or "" when absent or malformed.
func (n *Notification) PhotoURL() string {
	if len(n.Metadata) == 0 {
		return ""
	}
	var meta NotificationMetadata
	if err := json.Unmarshal(n.Metadata, &meta); err != nil {
		return ""
	}
	return meta.PhotoURL
}
