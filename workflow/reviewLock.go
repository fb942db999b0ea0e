package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	reviewLockTTL = 15 * time.Second
	// a mutation that hits a deadlock or lock wait timeout is run once more on fresh state
	mutationAttempts = 2
)

func reviewLockKey(reportId int) string {
	return fmt.Sprintf("review-lock:%d", reportId)
}

// obtainReviewLock takes the per-report redis lock when redis is configured.
// The lock is best effort: the report row lock inside the transaction is the authority,
// so failing to get it only logs. The returned func releases whatever was obtained.
func (s *FiscalReviewService) obtainReviewLock(ctx context.Context, reportId int) func() {
	if s.locker == nil {
		return func() {}
	}
	lock, err := s.locker.Obtain(ctx, reviewLockKey(reportId), s.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
	})
	if err != nil {
		msg := "could not obtain redis lock; proceeding without redis lock"
		if !errors.Is(err, redislock.ErrNotObtained) {
			msg = "error obtaining redis lock; proceeding without redis lock: " + err.Error()
		}
		s.logger.WithFields(logrus.Fields{
			"field":     "obtainReviewLock",
			"report_id": reportId,
		}).Warn(msg)
		return func() {}
	}
	return func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			s.logger.WithFields(logrus.Fields{
				"field":     "obtainReviewLock",
				"report_id": reportId,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}

// mutateReport runs fn in one transaction holding the report row lock, with a snapshot of the
// report read under that lock. Lock conflicts are retried once and then surface as ConflictError.
func (s *FiscalReviewService) mutateReport(ctx context.Context, operation string, reportId int, fn func(tx *gorm.DB, snapshot *models.ReportSnapshot) error) error {
	unlock := s.obtainReviewLock(ctx, reportId)
	defer unlock()

	var err error
	for attempt := 1; attempt <= mutationAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			report, err := models.LockReport(tx, reportId)
			if err != nil {
				return err
			}
			snapshot, err := models.LoadReportSnapshot(tx, report)
			if err != nil {
				return err
			}
			return fn(tx, snapshot)
		})
		err = classifyStorageError(err)
		if !models.IsRetryable(err) {
			return err
		}
		storageConflictsTotal.WithLabelValues(operation).Inc()
		s.logger.WithFields(logrus.Fields{
			"field":     operation,
			"report_id": reportId,
			"attempt":   attempt,
		}).Warn("review mutation hit a lock conflict: " + err.Error())
	}
	return err
}

// readReport runs fn on a consistent snapshot of the report without taking the row lock.
func (s *FiscalReviewService) readReport(ctx context.Context, reportId int, fn func(tx *gorm.DB, snapshot *models.ReportSnapshot) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := models.GetReport(tx, reportId)
		if err != nil {
			return err
		}
		snapshot, err := models.LoadReportSnapshot(tx, report)
		if err != nil {
			return err
		}
		return fn(tx, snapshot)
	})
}
