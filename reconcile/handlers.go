package reconcile

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

func resolveUsername(c *gin.Context) (string, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		return "", errors.New("unauthorized")
	}
	return username, nil
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		db := config.GetDB().WithContext(c.Request.Context())

		resp := StatusResponse{GatewayConfigured: gatewayConfigured()}

		var lastRun models.ReconciliationRun
		err := db.Order("id desc").First(&lastRun).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err == nil {
			run := mapRunToResponse(lastRun)
			resp.LastRun = &run
			resp.LastRunAt = formatTime(lastRun.StartedAt)
		}

		var lastSuccess models.ReconciliationRun
		err = db.Where("status = ?", models.ReconRunStatusSuccess).Order("id desc").First(&lastSuccess).Error
		if err == nil {
			resp.LastSuccessRunAt = formatTime(lastSuccess.FinishedAt)
		}

		c.JSON(http.StatusOK, resp)
	}
}

func TriggerRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !gatewayConfigured() {
			c.JSON(http.StatusConflict, gin.H{"error": "braintree gateway is not configured"})
			return
		}

		var req TriggerRunRequest
		_ = c.ShouldBindJSON(&req)
		triggeredBy := models.ReconTriggeredManual
		if req.TriggeredBy == models.ReconTriggeredSystem {
			triggeredBy = models.ReconTriggeredSystem
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run := models.ReconciliationRun{
			Status:      models.ReconRunStatusQueued,
			TriggeredBy: triggeredBy,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishReconciliationRun(c.Request.Context(), run.ID)

		c.JSON(http.StatusAccepted, gin.H{"id": run.ID})
	}
}

func RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var runs []models.ReconciliationRun
		if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, RunHistoryResponse{Items: items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.ReconciliationRun
		if err := db.Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.ReconciliationError
		if err := db.Where("run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := RunDetailResponse{
			RunResponse: mapRunToResponse(run),
			Errors:      mapErrors(errs),
		}
		c.JSON(http.StatusOK, resp)
	}
}

func RetryRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUsername(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.ReconciliationRun
		if err := db.Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.ReconciliationRun{
			Status:      models.ReconRunStatusQueued,
			TriggeredBy: models.ReconTriggeredRetry,
			ParentRunId: &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishReconciliationRun(c.Request.Context(), newRun.ID)

		c.JSON(http.StatusAccepted, gin.H{"id": newRun.ID})
	}
}

func mapRunToResponse(run models.ReconciliationRun) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		TriggeredBy: run.TriggeredBy,
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
		DurationMs:  run.DurationMs,
		Changed:     run.Changed,
		Unchanged:   run.Unchanged,
		ErrorCount:  run.ErrorCount,
	}
}

func mapErrors(errs []models.ReconciliationError) []RunErrorResponse {
	out := make([]RunErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, RunErrorResponse{
			ID:            e.ID,
			Phase:         e.Phase,
			CheckoutId:    e.CheckoutId,
			TransactionId: e.TransactionId,
			ErrorCode:     e.ErrorCode,
			Message:       e.Message,
			Retryable:     e.Retryable,
		})
	}
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
