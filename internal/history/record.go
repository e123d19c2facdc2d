package history

import "time"

// Delivery status values. StatusPending is the pre-dispatch placeholder;
// it must never appear in a persisted record, every entry resolves to
// success or failed before Append.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DeliveryResult is the outcome of attempting delivery through one
// channel for one push.
type DeliveryResult struct {
	ChannelID   string `json:"channelId"`
	ChannelType string `json:"channelType"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	ExternalID  string `json:"externalId,omitempty"`
}

// PushRecord is the durable record of one push request and its
// per-channel outcomes. It is append-only: never mutated once persisted.
type PushRecord struct {
	ID              string           `json:"id"`
	AccountID       string           `json:"accountId"`
	Title           string           `json:"title"`
	Content         string           `json:"content,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	DeliveryResults []DeliveryResult `json:"deliveryResults"`
}
