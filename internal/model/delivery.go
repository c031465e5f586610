package model

import "time"

// Channel is a distribution channel.
type Channel string

const ChannelEmail Channel = "email"

// DeliveryStatus tracks one broadcast of a content record on a channel.
type DeliveryStatus string

const (
	DeliverySending DeliveryStatus = "sending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery records the broadcast of one content record on one channel.
// (content_id, channel) is unique; a sending row is the claim taken before
// any message leaves the process.
type Delivery struct {
	ID           string         `json:"id"`
	ContentID    string         `json:"content_id"`
	Channel      Channel        `json:"channel"`
	Status       DeliveryStatus `json:"status"`
	Recipients   int            `json:"recipients"`
	SentCount    int            `json:"sent_count"`
	FailedCount  int            `json:"failed_count"`
	ProviderIDs  []string       `json:"provider_ids,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
