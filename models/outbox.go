package models

import "time"

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// ShipmentSyncRecord is a transactional-outbox row: written in the same DB
// transaction as the payment transition it reacts to, published to Pub/Sub
// asynchronously by the dispatcher.
type ShipmentSyncRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	OrderId          int        `gorm:"index;not null" json:"order_id"`
	Reason           string     `gorm:"size:64" json:"reason"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING'" json:"publish_status"`
	PublishAttempts  int        `gorm:"default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	PublishedAt      *time.Time `json:"published_at"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
