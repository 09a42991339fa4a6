package models

import "time"

// Message represents a row in the "messages" table. Messages are written by
// another service; this module only reads them.
type Message struct {
	ID           int64
	FromUsername string
	ToUsername   string
	Body         string
	SentAt       time.Time
	// ReadAt is nil while the message is unread.
	ReadAt *time.Time
}

// OutboundMessage is a sent message together with the recipient's profile.
type OutboundMessage struct {
	ID     int64      `json:"id"`
	Body   string     `json:"body"`
	SentAt time.Time  `json:"sentAt"`
	ReadAt *time.Time `json:"readAt"`
	ToUser Profile    `json:"toUser"`
}

// InboundMessage is a received message together with the sender's profile.
type InboundMessage struct {
	ID       int64      `json:"id"`
	Body     string     `json:"body"`
	SentAt   time.Time  `json:"sentAt"`
	ReadAt   *time.Time `json:"readAt"`
	FromUser Profile    `json:"fromUser"`
}
