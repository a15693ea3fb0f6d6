package tfnsync

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/models"
	"gorm.io/gorm"
)

const syncRunLockKey = "tfn-sync:run-lock"
const syncRunLockTTL = 15 * time.Minute

const lastRunCacheKey = "tfn-sync:last-run"
const lastRunCacheTTL = time.Hour

// ExecuteSyncRun drives one queued TfnSyncRun to a terminal state: it takes
// the cross-replica run lock, runs the full sync, releases the partner
// session and persists the report plus per-type error rows.
func ExecuteSyncRun(ctx context.Context, runId uint, opts RunOptions) error {
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	var run models.TfnSyncRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess ||
		run.Status == models.SyncRunStatusFailed ||
		run.Status == models.SyncRunStatusPartial {
		return nil
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, syncRunLockKey, syncRunLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			if err := failRun(db, &run, "another sync run is already in progress"); err != nil {
				return err
			}
			cacheLastRun(db, run.ID)
			return nil
		}
		if err != nil {
			return err
		}
		defer lock.Release(context.Background())
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	tokens := newTokenManager(logger)
	client := newTfnClient(tokens, logger)
	syncer := NewSyncer(client, NewGormStore(config.GetDB()), logger)

	report := syncer.RunFullSync(ctx, opts)

	// The partner session is per-run; release it whatever the outcome.
	if err := tokens.Logout(context.Background()); err != nil {
		logger.WithField("module", "tfnsync").Warnf("tfn logout failed: %v", err)
	}

	if err := finishRun(db, &run, startedAt, report); err != nil {
		return err
	}
	cacheLastRun(db, run.ID)
	return nil
}

// cacheLastRun refreshes the redis snapshot the status endpoint serves.
// Best-effort: a cache miss just falls back to the database.
func cacheLastRun(db *gorm.DB, runId uint) {
	var run models.TfnSyncRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		return
	}
	resp := mapRunToResponse(run)
	resp.Report = DecodeReport(run.ReportJSON)
	if err := config.SetRedisObject(lastRunCacheKey, resp, lastRunCacheTTL); err != nil {
		config.GetLogger().WithField("module", "tfnsync").Warnf("last-run cache write failed: %v", err)
	}
}

func failRun(db *gorm.DB, run *models.TfnSyncRun, message string) error {
	finishedAt := time.Now()
	return db.Model(run).Updates(map[string]interface{}{
		"status":      models.SyncRunStatusFailed,
		"finished_at": finishedAt,
		"report_json": EncodeReport(&SyncReport{Message: message}),
		"error_count": 1,
	}).Error
}

func finishRun(db *gorm.DB, run *models.TfnSyncRun, startedAt *time.Time, report *SyncReport) error {
	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()

	errorCount := report.ErrorCount()
	totalSynced := report.TotalSynced()

	status := models.SyncRunStatusSuccess
	if !report.Success {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 && totalSynced == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	for entityType, result := range report.results() {
		if !result.Failed() {
			continue
		}
		errRec := models.TfnSyncError{
			SyncRunId:  run.ID,
			EntityType: entityType,
			Message:    result.Error,
		}
		if err := db.Create(&errRec).Error; err != nil {
			return err
		}
	}

	return db.Model(run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    durationMs,
		"records_synced": totalSynced,
		"error_count":    errorCount,
		"report_json":    EncodeReport(report),
	}).Error
}
