package outbox

import "time"

// Message is an outbox row persisted inside the same DB transaction as
// the state change it announces. The worker relay reads unpublished rows
// and forwards them to the message bus.
type Message struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}
