package workflow

import (
	"context"
	"io"
	"iter"
	"slices"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/models/reports"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type ListReviewItemsInput struct {
	ReportId   int
	ReviewerId string
	SortMode   models.SortMode
	Filter     models.ReviewFilter
}

// ListReviewItems returns the report's transactions with their review state, filtered and in
// display order, as seen by the reviewer.
func (s *FiscalReviewService) ListReviewItems(ctx context.Context, input ListReviewItemsInput) (items iter.Seq[models.ReviewItem], err error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.ListReviewItems", trace.WithAttributes(
		attribute.Int("report_id", input.ReportId),
		attribute.String("sort", string(input.SortMode)),
		attribute.String("filter", string(input.Filter)),
	))
	defer func() { endSpan(span, err) }()

	visible, _, err := s.loadReviewItems(ctx, input)
	if err != nil {
		return nil, err
	}
	return models.SortReviewItems(visible, input.SortMode), nil
}

func (s *FiscalReviewService) loadReviewItems(ctx context.Context, input ListReviewItemsInput) ([]models.ReviewItem, *models.ReportSnapshot, error) {
	if err := validateReviewerId(input.ReviewerId); err != nil {
		return nil, nil, err
	}
	var snapshot *models.ReportSnapshot
	err := s.readReport(ctx, input.ReportId, func(tx *gorm.DB, snap *models.ReportSnapshot) error {
		snapshot = snap
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "reviewItems.go", "ListReviewItems", "readReport", input.ReportId, err)
		return nil, nil, err
	}

	ids := make([]int, 0, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		ids = append(ids, e.TransactionId)
	}
	transactions, err := s.transactions.GetTransactions(ctx, ids)
	if err != nil {
		config.LogError(s.logger, "reviewItems.go", "ListReviewItems", "GetTransactions", input.ReportId, err)
		return nil, nil, err
	}
	byId := make(map[int]*models.FiscalTransaction, len(transactions))
	for _, t := range transactions {
		if t != nil {
			byId[t.ID] = t
		}
	}

	order, err := s.customOrder.GetCustomOrder(ctx, input.ReportId)
	if err != nil {
		// the page order is optional; entry order is used without it
		s.logger.WithFields(logrus.Fields{
			"field":     "ListReviewItems",
			"report_id": input.ReportId,
		}).Warn("custom order unavailable: " + err.Error())
		order = nil
	}

	all := make([]models.ReviewItem, 0, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		t, ok := byId[e.TransactionId]
		if !ok {
			return nil, nil, utils.ErrorRecordNotFound
		}
		all = append(all, models.BuildReviewItem(*t, snapshot.Votes[e.TransactionId], input.ReviewerId, order))
	}
	return models.FilterReviewItems(all, input.Filter), snapshot, nil
}

// ExportReviewSheet writes the filtered, ordered review list and the report progress as XLSX.
func (s *FiscalReviewService) ExportReviewSheet(ctx context.Context, w io.Writer, input ListReviewItemsInput) error {
	visible, snapshot, err := s.loadReviewItems(ctx, input)
	if err != nil {
		return err
	}
	ordered := slices.Collect(models.SortReviewItems(visible, input.SortMode))
	if err := reports.WriteReviewSheet(ctx, w, &snapshot.Report, ordered, snapshot.Progress()); err != nil {
		config.LogError(s.logger, "reviewItems.go", "ExportReviewSheet", "WriteReviewSheet", input.ReportId, err)
		return err
	}
	return nil
}
