package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/braintree"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Count candidate checkouts only (no writes)")
	skipRecovery := flag.Bool("skip-recovery", false, "Run the state scan without the failed-order recovery pass")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall deadline for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	if *dryRun {
		var count int64
		if err := models.NonFinalCheckouts(db.Model(&models.Checkout{})).Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "count failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("candidates=%d\n", count)
		return
	}

	gw, err := braintree.NewClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway init failed: %v\n", err)
		os.Exit(1)
	}

	logger := config.GetLogger()
	startedAt := time.Now()
	run := models.ReconciliationRun{
		Status:      models.ReconRunStatusRunning,
		TriggeredBy: models.ReconTriggeredManual,
		StartedAt:   &startedAt,
	}
	if err := db.Create(&run).Error; err != nil {
		fmt.Fprintf(os.Stderr, "create run failed: %v\n", err)
		os.Exit(1)
	}

	var result workflow.UpdateStatesResult
	var runErr error
	if *skipRecovery {
		result, runErr = workflow.ProcessUpdateStates(ctx, db, logger, gw, run.ID)
	} else {
		result, runErr = workflow.RunReconciliation(ctx, db, logger, gw, run.ID)
	}

	status := models.ReconRunStatusSuccess
	switch {
	case runErr != nil:
		status = models.ReconRunStatusFailed
	case result.Failed > 0 && result.Changed == 0 && result.Unchanged == 0:
		status = models.ReconRunStatusFailed
	case result.Failed > 0:
		status = models.ReconRunStatusPartial
	}
	finishedAt := time.Now()
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(startedAt).Milliseconds(),
		"changed":     result.Changed,
		"unchanged":   result.Unchanged,
		"error_count": result.Failed,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "finalize run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("run=%d status=%s changed=%d unchanged=%d failed=%d\n",
		run.ID, status, result.Changed, result.Unchanged, result.Failed)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		os.Exit(1)
	}
	if result.Failed > 0 {
		os.Exit(2)
	}
}
