package models

import "time"

const (
	ReconRunStatusQueued  = "queued"
	ReconRunStatusRunning = "running"
	ReconRunStatusSuccess = "success"
	ReconRunStatusFailed  = "failed"
	ReconRunStatusPartial = "partial"
)

const (
	ReconTriggeredManual = "manual"
	ReconTriggeredRetry  = "retry"
	ReconTriggeredSystem = "system"
)

const (
	ReconPhaseScan     = "scan"
	ReconPhaseRecovery = "recovery"
)

// ReconciliationRun is one execution of the update-states scan plus the
// failed-order recovery pass.
type ReconciliationRun struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Status      string     `gorm:"size:20;index;not null" json:"status"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`
	Changed     int        `json:"changed"`
	Unchanged   int        `json:"unchanged"`
	ErrorCount  int        `json:"error_count"`
	ParentRunId *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReconciliationError is a per-record failure surfaced from a run. The
// affected checkout stays eligible for the next scan.
type ReconciliationError struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	RunId         uint      `gorm:"index;not null" json:"run_id"`
	Phase         string    `gorm:"size:20" json:"phase"`
	CheckoutId    int       `gorm:"index" json:"checkout_id"`
	TransactionId string    `gorm:"size:128" json:"transaction_id"`
	ErrorCode     string    `gorm:"size:64" json:"error_code"`
	Message       string    `gorm:"type:text" json:"message"`
	Retryable     bool      `gorm:"default:false" json:"retryable"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
