package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

type Order struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Number    string          `gorm:"size:64;uniqueIndex" json:"number"`
	Total     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Payments  []Payment       `gorm:"foreignKey:OrderId" json:"payments"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetOrderById(ctx context.Context, tx *gorm.DB, id int) (*Order, error) {
	var order Order
	if err := tx.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &order, nil
}

// RequestShipmentResync records a resync request for the shipment subsystem
// inside the caller's transaction. The outbox dispatcher publishes it after
// commit, so the request cannot outrun the payment transition it reacts to.
func (o *Order) RequestShipmentResync(ctx context.Context, tx *gorm.DB, reason string) error {
	rec := ShipmentSyncRecord{
		OrderId:       o.ID,
		Reason:        reason,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&rec).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
