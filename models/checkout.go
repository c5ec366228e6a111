package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

// RecoveryWindow bounds the failed-order recovery candidate set.
// Authorization can lag settlement by up to roughly two days in practice;
// older checkouts are assumed already reconciled or abandoned.
const RecoveryWindow = 48 * time.Hour

var ErrCheckoutStateFinal = errors.New("checkout state is terminal")

// Checkout mirrors one Braintree transaction. It is created once, mutated
// only by the reconciliation engine, and frozen once its state is FINAL.
type Checkout struct {
	ID                  int           `gorm:"primary_key" json:"id"`
	State               CheckoutState `gorm:"size:40;index;not null" json:"state"`
	TransactionId       string        `gorm:"size:128;uniqueIndex;not null" json:"transaction_id"`
	PayPalEmail         *string       `gorm:"size:255" json:"paypal_email"`
	BraintreeCardType   string        `gorm:"size:40" json:"braintree_card_type"`
	BraintreeLastDigits string        `gorm:"size:8" json:"braintree_last_digits"`
	Payment             *Payment      `gorm:"foreignKey:CheckoutId" json:"payment"`
	CreatedAt           time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCheckout struct {
	TransactionId string `json:"transaction_id" binding:"required"`
	CardType      string `json:"card_type"`
	LastDigits    string `json:"last_digits"`
	PayPalEmail   string `json:"paypal_email"`
}

type NewVaultCheckout struct {
	TransactionId string `json:"transaction_id" binding:"required"`
	Token         string `json:"token" binding:"required"`
}

// VaultLookup resolves a vaulted payment-method token at the gateway.
type VaultLookup interface {
	VaultedPaymentMethod(ctx context.Context, token string) (*braintree.VaultedPaymentMethod, error)
}

func (input *NewCheckout) validate() error {
	if strings.TrimSpace(input.TransactionId) == "" {
		return errors.New("transaction id is required")
	}
	if input.PayPalEmail != "" && !utils.IsValidEmail(input.PayPalEmail) {
		return errors.New("paypal email is invalid")
	}
	return nil
}

// CreateCheckoutFromParams builds a checkout from inline card-tokenization
// parameters. Card-brand labels are normalized at creation time.
func CreateCheckoutFromParams(ctx context.Context, tx *gorm.DB, input *NewCheckout) (*Checkout, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	checkout := Checkout{
		State:               CheckoutStateAuthorized,
		TransactionId:       input.TransactionId,
		BraintreeCardType:   NormalizeCardType(input.CardType),
		BraintreeLastDigits: input.LastDigits,
	}
	if input.PayPalEmail != "" {
		email := input.PayPalEmail
		checkout.PayPalEmail = &email
	}
	if err := tx.WithContext(ctx).Create(&checkout).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

// CreateCheckoutFromVaultToken builds a checkout from a vaulted
// payment-method token. Vault fields are optional; missing card details
// resolve to empty strings and a missing email leaves PayPalEmail unset.
func CreateCheckoutFromVaultToken(ctx context.Context, tx *gorm.DB, vault VaultLookup, input *NewVaultCheckout) (*Checkout, error) {
	if strings.TrimSpace(input.TransactionId) == "" || strings.TrimSpace(input.Token) == "" {
		return nil, errors.New("transaction id and token are required")
	}

	method, err := vault.VaultedPaymentMethod(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	checkout := Checkout{
		State:               CheckoutStateAuthorized,
		TransactionId:       input.TransactionId,
		BraintreeCardType:   NormalizeCardType(utils.DereferencePtr(method.CardType)),
		BraintreeLastDigits: utils.DereferencePtr(method.LastDigits),
	}
	if method.Email != nil && *method.Email != "" {
		email := *method.Email
		checkout.PayPalEmail = &email
	}
	if err := tx.WithContext(ctx).Create(&checkout).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

func GetCheckoutById(ctx context.Context, tx *gorm.DB, id int) (*Checkout, error) {
	var checkout Checkout
	if err := tx.WithContext(ctx).Preload("Payment").First(&checkout, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &checkout, nil
}

// NonFinalCheckouts scopes to checkouts still eligible for the scan.
func NonFinalCheckouts(tx *gorm.DB) *gorm.DB {
	return tx.Where("state NOT IN ?", FinalCheckoutStates)
}

func CheckoutsInState(tx *gorm.DB, states []CheckoutState) *gorm.DB {
	return tx.Where("state IN ?", states)
}

// RecentSettledPayPalCheckouts scopes to the recovery candidate set:
// settled PayPal checkouts created within the window.
func RecentSettledPayPalCheckouts(tx *gorm.DB, window time.Duration) *gorm.DB {
	cutoff := time.Now().Add(-window)
	return CheckoutsInState(tx, []CheckoutState{CheckoutStateSettled}).
		Where("created_at >= ?", cutoff).
		Where("paypal_email IS NOT NULL AND paypal_email <> ''")
}

// SetState is the single mutation path for checkout state. FINAL states are
// immutable; equal states are a no-op so re-running a scan never produces
// duplicate side effects.
func (c *Checkout) SetState(tx *gorm.DB, next CheckoutState) (prev CheckoutState, changed bool, err error) {
	prev = c.State
	if prev == next {
		return prev, false, nil
	}
	if prev.IsFinal() {
		return prev, false, ErrCheckoutStateFinal
	}
	if err := tx.Model(&Checkout{}).Where("id = ?", c.ID).Update("state", next).Error; err != nil {
		return prev, false, err
	}
	c.State = next
	return prev, true, nil
}
