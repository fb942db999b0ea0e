package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type NewReviewVote struct {
	ReportId      int                 `json:"report_id" validate:"gt=0"`
	TransactionId int                 `json:"transaction_id" validate:"gt=0"`
	ReviewerId    string              `json:"reviewer_id" validate:"required,max=64"`
	ReviewerName  string              `json:"reviewer_name" validate:"max=100"`
	Decision      models.VoteDecision `json:"decision" validate:"required,oneof=approved divergent"`
	Observation   *string             `json:"observation" validate:"omitempty,max=2000"`
}

type BulkApproveInput struct {
	ReportId       int    `json:"report_id" validate:"gt=0"`
	ReviewerId     string `json:"reviewer_id" validate:"required,max=64"`
	ReviewerName   string `json:"reviewer_name" validate:"max=100"`
	TransactionIds []int  `json:"transaction_ids" validate:"dive,gt=0"`
}

type BulkApproveResult struct {
	ApprovedCount int   `json:"approved_count"`
	Skipped       []int `json:"skipped"`
}

// validateInput runs the struct's validate tags and reports the first failure as a ValidationError.
func validateInput(input interface{}) error {
	err := utils.ValidateStruct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &models.ValidationError{
			Field:   utils.LowercaseFirst(fe.Field()),
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
		}
	}
	return err
}

func validateReviewerId(reviewerId string) error {
	if strings.TrimSpace(reviewerId) == "" {
		return &models.ValidationError{Field: "reviewerId", Message: "reviewer id is required"}
	}
	return nil
}

func transactionNotInReport(transactionId int) error {
	return &models.ValidationError{
		Field:   "transactionId",
		Message: fmt.Sprintf("transaction %d does not belong to this report", transactionId),
	}
}

// guardOpenReport rejects changes to a report whose derived status is finished.
func guardOpenReport(snapshot *models.ReportSnapshot) error {
	if snapshot.DerivedStatus() == models.ReportStatusFinished {
		return models.ErrReportFinished
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// refreshReviewRecords re-derives the shared records of the given transactions from their votes.
func refreshReviewRecords(tx *gorm.DB, snapshot *models.ReportSnapshot, transactionIds ...int) ([]models.ReviewRecord, error) {
	votes, err := models.ListReviewVotes(tx, snapshot.Report.ID, transactionIds...)
	if err != nil {
		return nil, err
	}
	byTx := make(map[int][]models.ReviewVote, len(transactionIds))
	for _, v := range votes {
		byTx[v.TransactionId] = append(byTx[v.TransactionId], v)
	}
	records := make([]models.ReviewRecord, 0, len(transactionIds))
	for _, id := range transactionIds {
		entry, ok := snapshot.Entry(id)
		if !ok {
			return nil, transactionNotInReport(id)
		}
		record := models.ProjectReviewRecord(snapshot.Report.ID, entry, byTx[id])
		if err := models.SaveReviewRecord(tx, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// SubmitVote records the reviewer's decision on one transaction and returns the re-derived record.
// Approve and Flag are SubmitVote with the approved and divergent decisions.
func (s *FiscalReviewService) SubmitVote(ctx context.Context, input NewReviewVote) (*models.ReviewRecord, error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.SubmitVote", trace.WithAttributes(
		attribute.Int("report_id", input.ReportId),
		attribute.Int("transaction_id", input.TransactionId),
		attribute.String("decision", string(input.Decision)),
	))
	var err error
	defer func() { endSpan(span, err) }()

	var record *models.ReviewRecord
	record, err = s.submitVote(ctx, input)
	return record, err
}

func (s *FiscalReviewService) submitVote(ctx context.Context, input NewReviewVote) (*models.ReviewRecord, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateReviewerId(input.ReviewerId); err != nil {
		return nil, err
	}
	observation := utils.NilIfBlank(input.Observation)
	if input.Decision == models.VoteDecisionDivergent && observation == nil {
		return nil, models.ErrObservationEmpty
	}

	var record models.ReviewRecord
	err := s.mutateReport(ctx, "SubmitVote", input.ReportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		if err := guardOpenReport(snapshot); err != nil {
			return err
		}
		if !snapshot.HasTransaction(input.TransactionId) {
			return transactionNotInReport(input.TransactionId)
		}
		if snapshot.HasSigned(input.ReviewerId) {
			return models.ErrReviewerSigned
		}
		if _, err := models.ClaimReviewerSeat(tx, input.ReportId, input.ReviewerId, input.ReviewerName); err != nil {
			return err
		}
		vote := models.ReviewVote{
			ReportId:      input.ReportId,
			TransactionId: input.TransactionId,
			ReviewerId:    input.ReviewerId,
			ReviewerName:  input.ReviewerName,
			Decision:      input.Decision,
			Observation:   observation,
		}
		if err := models.UpsertReviewVote(tx, &vote); err != nil {
			return err
		}
		records, err := refreshReviewRecords(tx, snapshot, input.TransactionId)
		if err != nil {
			return err
		}
		record = records[0]
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "fiscalReviewWorkflow.go", "SubmitVote", "mutateReport", input, err)
		return nil, err
	}
	votesTotal.WithLabelValues(string(input.Decision)).Inc()
	return &record, nil
}

func (s *FiscalReviewService) Approve(ctx context.Context, reportId int, transactionId int, reviewerId string, reviewerName string) (*models.ReviewRecord, error) {
	return s.SubmitVote(ctx, NewReviewVote{
		ReportId:      reportId,
		TransactionId: transactionId,
		ReviewerId:    reviewerId,
		ReviewerName:  reviewerName,
		Decision:      models.VoteDecisionApproved,
	})
}

func (s *FiscalReviewService) Flag(ctx context.Context, reportId int, transactionId int, reviewerId string, reviewerName string, observation string) (*models.ReviewRecord, error) {
	return s.SubmitVote(ctx, NewReviewVote{
		ReportId:      reportId,
		TransactionId: transactionId,
		ReviewerId:    reviewerId,
		ReviewerName:  reviewerName,
		Decision:      models.VoteDecisionDivergent,
		Observation:   &observation,
	})
}

// ConfirmDiligence acknowledges the diligence round of a transaction for the reviewer.
// Acknowledging twice is a no-op.
func (s *FiscalReviewService) ConfirmDiligence(ctx context.Context, reportId int, transactionId int, reviewerId string) (err error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.ConfirmDiligence", trace.WithAttributes(
		attribute.Int("report_id", reportId),
		attribute.Int("transaction_id", transactionId),
	))
	defer func() { endSpan(span, err) }()

	if reportId <= 0 {
		return &models.ValidationError{Field: "reportId", Message: "report id is required"}
	}
	if err := validateReviewerId(reviewerId); err != nil {
		return err
	}

	changed := false
	err = s.mutateReport(ctx, "ConfirmDiligence", reportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		if err := guardOpenReport(snapshot); err != nil {
			return err
		}
		if !snapshot.HasTransaction(transactionId) {
			return transactionNotInReport(transactionId)
		}
		if !snapshot.Aggregate(transactionId).IsDiligence {
			return models.ErrNotInDiligence
		}
		if snapshot.VoteOf(transactionId, reviewerId) == nil {
			return models.ErrNoDecisionYet
		}
		flipped, err := models.AcknowledgeDiligence(tx, reportId, transactionId, reviewerId)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}
		changed = true
		_, err = refreshReviewRecords(tx, snapshot, transactionId)
		return err
	})
	if err != nil {
		config.LogError(s.logger, "fiscalReviewWorkflow.go", "ConfirmDiligence", "mutateReport",
			map[string]interface{}{"report_id": reportId, "transaction_id": transactionId, "reviewer_id": reviewerId}, err)
		return err
	}
	if changed {
		diligenceAcksTotal.Inc()
	}
	return nil
}

// BulkApprove approves every listed transaction the reviewer has not decided on yet and that is
// not in diligence. The others are returned as skipped. The batch commits as a whole.
func (s *FiscalReviewService) BulkApprove(ctx context.Context, input BulkApproveInput) (result *BulkApproveResult, err error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.BulkApprove", trace.WithAttributes(
		attribute.Int("report_id", input.ReportId),
		attribute.Int("requested", len(input.TransactionIds)),
	))
	defer func() { endSpan(span, err) }()

	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateReviewerId(input.ReviewerId); err != nil {
		return nil, err
	}
	ids := utils.UniqueSlice(input.TransactionIds)
	result = &BulkApproveResult{Skipped: []int{}}
	if len(ids) == 0 {
		return result, nil
	}

	err = s.mutateReport(ctx, "BulkApprove", input.ReportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		result = &BulkApproveResult{Skipped: []int{}}
		if err := guardOpenReport(snapshot); err != nil {
			return err
		}
		for _, id := range ids {
			if !snapshot.HasTransaction(id) {
				return transactionNotInReport(id)
			}
		}
		if snapshot.HasSigned(input.ReviewerId) {
			return models.ErrReviewerSigned
		}

		approved := make([]int, 0, len(ids))
		for _, id := range ids {
			if snapshot.VoteOf(id, input.ReviewerId) != nil || snapshot.Aggregate(id).IsDiligence {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			approved = append(approved, id)
		}
		if len(approved) == 0 {
			return nil
		}
		if _, err := models.ClaimReviewerSeat(tx, input.ReportId, input.ReviewerId, input.ReviewerName); err != nil {
			return err
		}
		for _, id := range approved {
			vote := models.ReviewVote{
				ReportId:      input.ReportId,
				TransactionId: id,
				ReviewerId:    input.ReviewerId,
				ReviewerName:  input.ReviewerName,
				Decision:      models.VoteDecisionApproved,
			}
			if err := models.UpsertReviewVote(tx, &vote); err != nil {
				return err
			}
		}
		if _, err := refreshReviewRecords(tx, snapshot, approved...); err != nil {
			return err
		}
		result.ApprovedCount = len(approved)
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "fiscalReviewWorkflow.go", "BulkApprove", "mutateReport", input, err)
		return nil, err
	}
	bulkApprovedTotal.Add(float64(result.ApprovedCount))
	votesTotal.WithLabelValues(string(models.VoteDecisionApproved)).Add(float64(result.ApprovedCount))
	return result, nil
}
