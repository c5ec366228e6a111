package workflow

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
)

// ProcessFailedOrderRecovery repairs orders whose payment is locally failed
// although the checkout settled on the gateway. Returns the number of
// candidates whose processing failed; failures never leak across candidates.
func ProcessFailedOrderRecovery(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gw braintree.Gateway, runId uint) int {
	var candidates []*models.Checkout
	err := models.RecentSettledPayPalCheckouts(db.WithContext(ctx), models.RecoveryWindow).
		Preload("Payment").Find(&candidates).Error
	if err != nil {
		config.LogError(logger, "failedOrderRecovery.go", "ProcessFailedOrderRecovery", "querying recovery candidates", nil, err)
		return 1
	}

	errorCount := 0
	for _, checkout := range candidates {
		if err := recoverCandidate(ctx, db, logger, gw, checkout); err != nil {
			errorCount++
			config.LogError(logger, "failedOrderRecovery.go", "ProcessFailedOrderRecovery", "recovering candidate", checkout.ID, err)
			recordRunError(ctx, db, logger, runId, models.ReconPhaseRecovery, checkout, err)
		}
	}
	return errorCount
}

// AmountsConsistent holds when order total, payment amount and gateway
// amount collapse to a single value. Mismatches are never auto-resolved to
// completed: a gateway adjustment or partial capture means the local amounts
// would misrepresent what the customer was charged.
func AmountsConsistent(orderTotal, paymentAmount, gatewayAmount decimal.Decimal) bool {
	return orderTotal.Equal(paymentAmount) && paymentAmount.Equal(gatewayAmount)
}

func recoverCandidate(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gw braintree.Gateway, checkout *models.Checkout) error {
	payment := checkout.Payment
	// Drift signature: payment failed locally while the checkout settled.
	if payment == nil || payment.State != models.PaymentStateFailed || checkout.State != models.CheckoutStateSettled {
		return nil
	}

	// Re-verify at the point of recovery; local state may have moved since
	// the candidate query ran.
	txn, err := gw.FindTransaction(ctx, checkout.TransactionId)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txn.Status == string(models.CheckoutStateSettled) {
			if err := payment.SetState(tx, models.PaymentStatePending); err != nil {
				return err
			}
		}

		order, err := models.GetOrderById(ctx, tx, payment.OrderId)
		if err != nil {
			return err
		}
		if AmountsConsistent(order.Total, payment.Amount, txn.Amount) {
			if err := payment.SetState(tx, models.PaymentStateCompleted); err != nil {
				return err
			}
		}

		logger.WithFields(logrus.Fields{
			"checkout_id":   checkout.ID,
			"order_id":      order.ID,
			"payment_state": payment.State,
		}).Info("recovered failed order payment")

		return order.RequestShipmentResync(ctx, tx, "payment_recovered")
	})
}
