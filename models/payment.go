package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is the order-side payment record funded by a Braintree checkout.
// Its state only ever changes in response to an observed checkout-state
// change, applied through ApplyAction.
type Payment struct {
	ID         int             `gorm:"primary_key" json:"id"`
	OrderId    int             `gorm:"index;not null" json:"order_id"`
	CheckoutId *int            `gorm:"index" json:"checkout_id"`
	State      PaymentState    `gorm:"size:20;not null;default:'checkout'" json:"state"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TargetState returns the payment state an action resolves to.
func (a PaymentAction) TargetState() PaymentState {
	switch a {
	case PaymentActionPend:
		return PaymentStatePending
	case PaymentActionVoid:
		return PaymentStateVoid
	case PaymentActionComplete:
		return PaymentStateCompleted
	default:
		return PaymentStateFailed
	}
}

// ApplyAction moves the payment to the action's target state. Equal target
// states are a no-op, which keeps re-applied transitions side-effect free.
func (p *Payment) ApplyAction(tx *gorm.DB, action PaymentAction) error {
	target := action.TargetState()
	if p.State == target {
		return nil
	}
	if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Update("state", target).Error; err != nil {
		return err
	}
	p.State = target
	return nil
}

// SetState persists an explicit payment state, used by the recovery routine
// where the target is decided by the amount-consistency check rather than a
// mapped action.
func (p *Payment) SetState(tx *gorm.DB, state PaymentState) error {
	if p.State == state {
		return nil
	}
	if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Update("state", state).Error; err != nil {
		return err
	}
	p.State = state
	return nil
}
