package braintree

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable marks transient failures contacting the gateway.
	// Affected records are left unchanged and retried on the next scan.
	ErrGatewayUnavailable = errors.New("braintree gateway unavailable")

	ErrTransactionNotFound = errors.New("braintree transaction not found")
)

// Transaction is the gateway's authoritative view of one transaction.
type Transaction struct {
	Id          string          `json:"id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	PayPalEmail string          `json:"paypal_email"`
	CardType    string          `json:"card_type"`
	LastDigits  string          `json:"last_digits"`
}

// VaultedPaymentMethod is the gateway's record for a stored payment-method
// token. All fields are optional on the wire.
type VaultedPaymentMethod struct {
	CardType   *string `json:"card_type"`
	Email      *string `json:"email"`
	LastDigits *string `json:"last_digits"`
}

// Gateway is the query-only status client consumed by the reconciliation
// workflows. FindTransaction must be side-effect-free on the gateway.
type Gateway interface {
	FindTransaction(ctx context.Context, transactionId string) (*Transaction, error)
}

// Vault resolves vaulted payment-method tokens, consumed only by the
// checkout-creation factory paths.
type Vault interface {
	VaultedPaymentMethod(ctx context.Context, token string) (*VaultedPaymentMethod, error)
}
