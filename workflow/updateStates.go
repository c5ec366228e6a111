package workflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
)

type UpdateStatesResult struct {
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// ProcessUpdateStates scans every non-FINAL checkout and refreshes it
// against the gateway. Per-record failures are isolated: the record is left
// unchanged, surfaced as a run error, and retried on the next scan.
func ProcessUpdateStates(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gw braintree.Gateway, runId uint) (UpdateStatesResult, error) {
	var result UpdateStatesResult

	var checkouts []*models.Checkout
	if err := models.NonFinalCheckouts(db.WithContext(ctx)).Preload("Payment").Find(&checkouts).Error; err != nil {
		config.LogError(logger, "updateStates.go", "ProcessUpdateStates", "querying non-final checkouts", nil, err)
		return result, err
	}

	for _, checkout := range checkouts {
		changed, err := ReconcileCheckout(ctx, db, logger, gw, checkout)
		if err != nil {
			result.Failed++
			config.LogError(logger, "updateStates.go", "ProcessUpdateStates", "reconciling checkout", checkout.ID, err)
			recordRunError(ctx, db, logger, runId, models.ReconPhaseScan, checkout, err)
			continue
		}
		if changed {
			result.Changed++
		} else {
			result.Unchanged++
		}
	}
	return result, nil
}

// RunReconciliation is the full batch: the update-states scan followed by
// the failed-order recovery pass over the recent settled PayPal candidates.
func RunReconciliation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gw braintree.Gateway, runId uint) (UpdateStatesResult, error) {
	result, err := ProcessUpdateStates(ctx, db, logger, gw, runId)
	if err != nil {
		return result, err
	}
	result.Failed += ProcessFailedOrderRecovery(ctx, db, logger, gw, runId)
	return result, nil
}

func recordRunError(ctx context.Context, db *gorm.DB, logger *logrus.Logger, runId uint, phase string, checkout *models.Checkout, err error) {
	errorCode := "reconcile_failed"
	retryable := false
	if errors.Is(err, braintree.ErrGatewayUnavailable) {
		errorCode = "gateway_unavailable"
		retryable = true
	}
	if insertErr := db.WithContext(ctx).Create(&models.ReconciliationError{
		RunId:         runId,
		Phase:         phase,
		CheckoutId:    checkout.ID,
		TransactionId: checkout.TransactionId,
		ErrorCode:     errorCode,
		Message:       err.Error(),
		Retryable:     retryable,
	}).Error; insertErr != nil {
		config.LogError(logger, "updateStates.go", "recordRunError", "recording run error", checkout.ID, insertErr)
	}
}
