package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/xuri/excelize/v2"
)

const (
	reviewSheetName  = "Review"
	summarySheetName = "Summary"
)

var reviewSheetHeaders = []interface{}{
	"No", "Date", "Description", "Amount", "Status", "Approvals", "Diligence Acks", "Observation",
}

// WriteReviewSheet writes the review list (already in display order) and a progress summary as XLSX.
func WriteReviewSheet(ctx context.Context, w io.Writer, report *models.Report, items []models.ReviewItem, progress models.ReportProgress) error {
	started := time.Now()
	defer logSlowReport(ctx, "review_sheet", started, map[string]any{"report_id": report.ID, "rows": len(items)})

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reviewSheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(reviewSheetName, "A1", &reviewSheetHeaders); err != nil {
		return err
	}
	for i, item := range items {
		amount, _ := item.Amount.Float64()
		row := []interface{}{
			item.EntryIndex,
			item.TransactionDate.Format("2006-01-02"),
			item.Description,
			amount,
			string(item.Status),
			fmt.Sprintf("%d/%d", item.ApprovalCount, models.QuorumSize),
			diligenceCell(item),
			utils.DereferencePtr(item.Observation, ""),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reviewSheetName, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(reviewSheetName, "C", "C", 48); err != nil {
		return err
	}
	if err := f.SetColWidth(reviewSheetName, "H", "H", 48); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheetName); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Report", report.Title},
		{"Competency", report.Competency},
		{"Account type", report.AccountType},
		{"Transactions", progress.Total},
		{"Approved", progress.Approved},
		{"Flagged", progress.Flagged},
		{"Pending", progress.Pending},
		{"Diligences", progress.DiligenceCount},
		{"Unresolved diligences", progress.UnresolvedDiligence},
		{"Signatures", fmt.Sprintf("%d/%d", progress.SignatureCount, models.QuorumSize)},
		{"Finished", progress.IsFinished},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheetName, "A"+fmt.Sprint(i+1), &row); err != nil {
			return err
		}
	}
	for i, r := range progress.Reviewers {
		row := []interface{}{fmt.Sprintf("Reviewer %d", r.Seat), r.ReviewerName, r.Pending, r.HasSigned}
		if err := f.SetSheetRow(summarySheetName, "A"+fmt.Sprint(len(summary)+2+i), &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func diligenceCell(item models.ReviewItem) string {
	if !item.IsDiligence {
		return ""
	}
	return fmt.Sprintf("%d/%d", item.DiligenceAckCount, models.QuorumSize)
}
