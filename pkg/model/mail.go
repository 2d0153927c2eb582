package model

import "time"

// MailMessage is one stored mailbox message, delivered when the receiver
// issues a read command.
type MailMessage struct {
	ID        int64
	Receiver  string
	Sender    string
	Body      string
	CreatedAt time.Time
}
