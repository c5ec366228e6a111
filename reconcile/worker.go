package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
)

const reconcileLockKey = "braintree:reconcile"

// newGateway and newVault are swapped out in tests.
var newGateway = func() (braintree.Gateway, error) {
	return braintree.NewClientFromEnv()
}

var newVault = func() (braintree.Vault, error) {
	return braintree.NewClientFromEnv()
}

func braintreeGateway() (braintree.Gateway, error) {
	if !gatewayConfigured() {
		return nil, errors.New("braintree gateway is not configured")
	}
	return newGateway()
}

func braintreeVault() (braintree.Vault, error) {
	if !gatewayConfigured() {
		return nil, errors.New("braintree gateway is not configured")
	}
	return newVault()
}

func gatewayConfigured() bool {
	return strings.TrimSpace(os.Getenv("BRAINTREE_MERCHANT_ID")) != "" &&
		strings.TrimSpace(os.Getenv("BRAINTREE_PUBLIC_KEY")) != "" &&
		strings.TrimSpace(os.Getenv("BRAINTREE_PRIVATE_KEY")) != ""
}

func processReconciliationRun(ctx context.Context, payload ReconcilePubSubPayload) error {
	logger := config.GetLogger()
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}

	db := config.GetDB().WithContext(ctx)

	var run models.ReconciliationRun
	if err := db.Take(&run, payload.RunId).Error; err != nil {
		return err
	}
	if run.Status == models.ReconRunStatusSuccess ||
		run.Status == models.ReconRunStatusFailed ||
		run.Status == models.ReconRunStatusPartial {
		return nil
	}

	messageId := fmt.Sprintf("run-%d", run.ID)
	skip := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		skip, err = workflow.BeginIdempotency(tx, "BraintreeReconcile", messageId)
		return err
	})
	if err != nil {
		// ErrIdempotencyInProgress propagates so the push handler can nack
		// the message and Pub/Sub redelivers once the holder finishes.
		return err
	}
	if skip {
		return nil
	}

	// Only one reconciliation run mutates checkouts at a time.
	locker := config.GetRedisLock()
	var lock *redislock.Lock
	if locker != nil {
		lock, err = locker.Obtain(ctx, reconcileLockKey, 30*time.Minute, nil)
		if err != nil {
			_ = workflow.MarkIdempotencyFailed(db, "BraintreeReconcile", messageId, err)
			return err
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	startedAt := time.Now()
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.ReconRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		_ = workflow.MarkIdempotencyFailed(db, "BraintreeReconcile", messageId, err)
		return err
	}

	gw, err := braintreeGateway()
	if err != nil {
		finishRun(db, &run, startedAt, models.ReconRunStatusFailed, workflow.UpdateStatesResult{})
		_ = workflow.MarkIdempotencyFailed(db, "BraintreeReconcile", messageId, err)
		config.LogError(logger, "reconcile", "processReconciliationRun", "gateway init", nil, err)
		return err
	}

	result, runErr := workflow.RunReconciliation(ctx, db, logger, gw, run.ID)

	status := models.ReconRunStatusSuccess
	switch {
	case runErr != nil:
		status = models.ReconRunStatusFailed
	case result.Failed > 0 && result.Changed == 0 && result.Unchanged == 0:
		status = models.ReconRunStatusFailed
	case result.Failed > 0:
		status = models.ReconRunStatusPartial
	}

	if err := finishRun(db, &run, startedAt, status, result); err != nil {
		_ = workflow.MarkIdempotencyFailed(db, "BraintreeReconcile", messageId, err)
		return err
	}

	if runErr != nil {
		_ = workflow.MarkIdempotencyFailed(db, "BraintreeReconcile", messageId, runErr)
		config.LogError(logger, "reconcile", "processReconciliationRun", "run failed", map[string]interface{}{"runId": run.ID}, runErr)
		return runErr
	}

	return workflow.MarkIdempotencySucceeded(db, "BraintreeReconcile", messageId)
}

func finishRun(db *gorm.DB, run *models.ReconciliationRun, startedAt time.Time, status string, result workflow.UpdateStatesResult) error {
	finishedAt := time.Now()
	return db.Model(run).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(startedAt).Milliseconds(),
		"changed":     result.Changed,
		"unchanged":   result.Unchanged,
		"error_count": result.Failed,
	}).Error
}
