package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
)

// ApplyCheckoutStateChange applies the payment action implied by an observed
// checkout-state transition. This is the single point where a payment is
// mutated as a consequence of a checkout change, and callers invoke it
// deliberately after persisting the new state, so it fires exactly once per
// real transition. Equal states and checkouts without a payment are no-ops.
func ApplyCheckoutStateChange(tx *gorm.DB, checkout *models.Checkout, prev, next models.CheckoutState) (models.PaymentAction, bool, error) {
	if prev == next {
		return "", false, nil
	}

	payment, err := paymentForCheckout(tx, checkout)
	if err != nil {
		return "", false, err
	}
	if payment == nil {
		return "", false, nil
	}

	action := models.ActionForPaymentStatus(next.PaymentStatus())
	if err := payment.ApplyAction(tx, action); err != nil {
		return action, false, err
	}
	return action, true, nil
}

func paymentForCheckout(tx *gorm.DB, checkout *models.Checkout) (*models.Payment, error) {
	if checkout.Payment != nil {
		return checkout.Payment, nil
	}
	var payment models.Payment
	err := tx.Where("checkout_id = ?", checkout.ID).First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	checkout.Payment = &payment
	return &payment, nil
}

// ReconcileCheckout refreshes one checkout against the gateway. The persist
// and the payment transition share one DB transaction, so each record is an
// all-or-nothing unit and partial scans are safe to re-run.
func ReconcileCheckout(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gw braintree.Gateway, checkout *models.Checkout) (bool, error) {
	txn, err := gw.FindTransaction(ctx, checkout.TransactionId)
	if err != nil {
		return false, err
	}

	next := models.CheckoutState(txn.Status)
	if next == checkout.State {
		return false, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, changed, err := checkout.SetState(tx, next)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		action, applied, err := ApplyCheckoutStateChange(tx, checkout, prev, next)
		if err != nil {
			return err
		}
		if applied {
			logger.WithFields(logrus.Fields{
				"checkout_id":    checkout.ID,
				"transaction_id": checkout.TransactionId,
				"prev_state":     prev,
				"next_state":     next,
				"action":         action,
			}).Info("payment action applied")
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "paymentTransition.go", "ReconcileCheckout", "persisting state change", checkout.ID, err)
		return false, err
	}
	return true, nil
}
