package workflow

import (
	"context"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// correctStatusCache rewrites reports.status when it disagrees with the derived status.
func (s *FiscalReviewService) correctStatusCache(tx *gorm.DB, snapshot *models.ReportSnapshot, derived models.ReportStatus) error {
	cached := snapshot.Report.Status
	report := snapshot.Report
	corrected, err := models.SyncReportStatus(tx, &report, derived)
	if err != nil {
		return err
	}
	if corrected {
		statusCorrectionsTotal.Inc()
		s.logger.WithFields(logrus.Fields{
			"field":     "correctStatusCache",
			"report_id": report.ID,
			"cached":    cached,
			"derived":   derived,
		}).Warn("report status cache corrected")
		snapshot.Report = report
	}
	return nil
}

// GetReportProgress computes the report's completion from its current rows. The stored report
// status is only a cache and is corrected here when it disagrees.
func (s *FiscalReviewService) GetReportProgress(ctx context.Context, reportId int) (progress *models.ReportProgress, err error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.GetReportProgress", trace.WithAttributes(
		attribute.Int("report_id", reportId),
	))
	defer func() { endSpan(span, err) }()

	err = s.readReport(ctx, reportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		p := snapshot.Progress()
		derived := models.ReportStatusOpen
		if p.IsFinished {
			derived = models.ReportStatusFinished
		}
		progress = &p
		return s.correctStatusCache(tx, snapshot, derived)
	})
	if err != nil {
		config.LogError(s.logger, "reportProgress.go", "GetReportProgress", "readReport", reportId, err)
		return nil, err
	}
	return progress, nil
}

// GetReviewerProgress is the reviewer's own pending work and signing eligibility.
func (s *FiscalReviewService) GetReviewerProgress(ctx context.Context, reportId int, reviewerId string) (*models.ReviewerProgress, error) {
	if err := validateReviewerId(reviewerId); err != nil {
		return nil, err
	}
	var progress models.ReviewerProgress
	err := s.readReport(ctx, reportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		progress = snapshot.ReviewerProgress(reviewerId)
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "reportProgress.go", "GetReviewerProgress", "readReport", reportId, err)
		return nil, err
	}
	return &progress, nil
}

type ReconcileResult struct {
	ReportId         int                 `json:"report_id"`
	Cached           models.ReportStatus `json:"cached"`
	Derived          models.ReportStatus `json:"derived"`
	RecordsRewritten int                 `json:"records_rewritten"`
}

// ReconcileReport rebuilds every review record projection of the report from its votes and
// corrects the cached status. With dryRun nothing is written.
func (s *FiscalReviewService) ReconcileReport(ctx context.Context, reportId int, dryRun bool) (*ReconcileResult, error) {
	var result ReconcileResult
	err := s.mutateReport(ctx, "ReconcileReport", reportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		result = ReconcileResult{
			ReportId: reportId,
			Cached:   snapshot.Report.Status,
			Derived:  snapshot.DerivedStatus(),
		}
		existing, err := models.ListReviewRecords(tx, reportId)
		if err != nil {
			return err
		}
		stored := make(map[int]models.ReviewRecord, len(existing))
		for _, r := range existing {
			stored[r.TransactionId] = r
		}

		stale := make([]int, 0)
		for _, entry := range snapshot.Entries {
			want := models.ProjectReviewRecord(reportId, entry, snapshot.Votes[entry.TransactionId])
			have, ok := stored[entry.TransactionId]
			if !ok || !sameProjection(have, want) {
				stale = append(stale, entry.TransactionId)
			}
		}
		result.RecordsRewritten = len(stale)
		if dryRun {
			return nil
		}
		if len(stale) > 0 {
			if _, err := refreshReviewRecords(tx, snapshot, stale...); err != nil {
				return err
			}
		}
		return s.correctStatusCache(tx, snapshot, result.Derived)
	})
	if err != nil {
		config.LogError(s.logger, "reportProgress.go", "ReconcileReport", "mutateReport", reportId, err)
		return nil, err
	}
	return &result, nil
}

func sameProjection(a, b models.ReviewRecord) bool {
	sameObservation := (a.Observation == nil && b.Observation == nil) ||
		(a.Observation != nil && b.Observation != nil && *a.Observation == *b.Observation)
	return a.EntryIndex == b.EntryIndex &&
		a.Status == b.Status &&
		a.ApprovalCount == b.ApprovalCount &&
		a.IsDiligence == b.IsDiligence &&
		a.AckCount == b.AckCount &&
		sameObservation
}
