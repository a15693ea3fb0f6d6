package tfnsync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"gorm.io/gorm"
)

// TriggerSyncHandler queues a run and executes it in the background. The
// response carries only the run id; callers poll the run endpoints for the
// report.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := requireSubject(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req TriggerSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run := models.TfnSyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// The queued run supersedes the cached snapshot.
		_ = config.RemoveRedisKey(lastRunCacheKey)

		opts := RunOptions{
			OrdersSince:       parseDate(req.OrdersSince),
			TransactionsSince: parseDate(req.TransactionsSince),
		}

		runCtx := context.Background()
		if cid, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok {
			runCtx = utils.SetCorrelationIdInContext(runCtx, cid)
		}
		go func() {
			if err := ExecuteSyncRun(runCtx, run.ID, opts); err != nil {
				config.LogError(config.GetLogger(), "tfnsync", "ExecuteSyncRun", "background run", run.ID, err)
			}
		}()

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// StatusHandler returns the most recent run, if any.
func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := requireSubject(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var cached SyncRunResponse
		if found, err := config.GetRedisObject(lastRunCacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"lastRun": cached})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.TfnSyncRun
		err := db.Order("id desc").Take(&run).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"lastRun": nil})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp := mapRunToResponse(run)
		resp.Report = DecodeReport(run.ReportJSON)
		c.JSON(http.StatusOK, gin.H{"lastRun": resp})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := requireSubject(c); err != nil {
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
		var runs []models.TfnSyncRun
		if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := requireSubject(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.TfnSyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": utils.ErrorRecordNotFound.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.TfnSyncError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapErrors(errs),
		}
		resp.Report = DecodeReport(run.ReportJSON)
		c.JSON(http.StatusOK, resp)
	}
}

// RetrySyncRunHandler queues a fresh run linked to a finished one.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := requireSubject(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.TfnSyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": utils.ErrorRecordNotFound.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.TfnSyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredRetry,
			ParentRunId: &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		_ = config.RemoveRedisKey(lastRunCacheKey)

		go func() {
			if err := ExecuteSyncRun(context.Background(), newRun.ID, RunOptions{}); err != nil {
				config.LogError(config.GetLogger(), "tfnsync", "ExecuteSyncRun", "retry run", newRun.ID, err)
			}
		}()

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func requireSubject(c *gin.Context) (string, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return "", errors.New("unauthorized")
	}
	return username, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.TfnSyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        run.Status,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.TfnSyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			EntityType: errItem.EntityType,
			ExternalId: errItem.ExternalId,
			Message:    errItem.Message,
		})
	}
	return out
}
