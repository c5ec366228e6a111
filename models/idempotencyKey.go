package models

import "time"

const (
	IdempotencyStatusStarted   = "STARTED"
	IdempotencyStatusSucceeded = "SUCCEEDED"
	IdempotencyStatusFailed    = "FAILED"
)

// IdempotencyKey makes at-least-once Pub/Sub delivery safe: one row per
// (handler, message), unique-keyed so concurrent deliveries collide on insert.
type IdempotencyKey struct {
	ID          int       `gorm:"primary_key" json:"id"`
	HandlerName string    `gorm:"uniqueIndex:idx_idempotency,priority:1;size:64;not null" json:"handler_name"`
	MessageId   string    `gorm:"uniqueIndex:idx_idempotency,priority:2;size:128;not null" json:"message_id"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	LastError   *string   `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
