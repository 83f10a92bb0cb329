package email

import (
	"context"
	"time"
)

// Message is a single outgoing email.
type Message struct {
	To      []string
	From    string // overrides the sender default when set
	Subject string
	HTML    string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}
