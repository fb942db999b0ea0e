package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
)

func TestGetReportProgress_CorrectsStaleStatusCache(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 2)
	s := newService(db)
	mustApprove(t, s, report.ID, txs[0], "ana")

	if err := db.Model(&models.Report{}).Where("id = ?", report.ID).Update("status", models.ReportStatusFinished).Error; err != nil {
		t.Fatalf("corrupt cache: %v", err)
	}
	p := progress(t, s, report.ID)
	if p.IsFinished {
		t.Fatalf("derived state must win over the cache")
	}
	var stored models.Report
	if err := db.First(&stored, report.ID).Error; err != nil {
		t.Fatalf("load report: %v", err)
	}
	if stored.Status != models.ReportStatusOpen {
		t.Fatalf("cache not corrected, status=%s", stored.Status)
	}

	// votes are guarded by the derived status, not the cache
	mustApprove(t, s, report.ID, txs[1], "ana")
}

func TestGetReviewerProgress(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	s := newService(db)

	mustApprove(t, s, report.ID, txs[0], "ana")
	mustFlag(t, s, report.ID, txs[0], "bruno", "falta recibo")

	p := reviewerProgress(t, s, report.ID, "ana")
	if p.Seat != 1 || p.Pending != 3 || p.NeedsDiligenceAck != 1 || p.CanSign {
		t.Fatalf("ana progress=%+v", p)
	}
	if p.BlockedReason == nil || *p.BlockedReason != models.NotEligiblePendingWork {
		t.Fatalf("blocked reason=%v", p.BlockedReason)
	}

	newcomer := reviewerProgress(t, s, report.ID, "carla")
	if newcomer.Seat != 0 || newcomer.Pending != 3 {
		t.Fatalf("carla progress=%+v", newcomer)
	}
}

func TestReconcileReport_RebuildsProjections(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	s := newService(db)
	mustApprove(t, s, report.ID, txs[0], "ana")
	mustFlag(t, s, report.ID, txs[1], "bruno", "valor a maior")

	if err := db.Where("report_id = ? AND transaction_id = ?", report.ID, txs[1]).Delete(&models.ReviewRecord{}).Error; err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if err := db.Model(&models.ReviewRecord{}).Where("transaction_id = ?", txs[0]).Update("approval_count", 3).Error; err != nil {
		t.Fatalf("corrupt record: %v", err)
	}

	dry, err := s.ReconcileReport(context.Background(), report.ID, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	// txs[2] has no votes and no record yet
	if dry.RecordsRewritten != 3 {
		t.Fatalf("dry run found %d stale records, want 3", dry.RecordsRewritten)
	}
	var count int64
	db.Model(&models.ReviewRecord{}).Where("report_id = ?", report.ID).Count(&count)
	if count != 1 {
		t.Fatalf("dry run wrote records, count=%d", count)
	}

	result, err := s.ReconcileReport(context.Background(), report.ID, false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.RecordsRewritten != 3 || result.Derived != models.ReportStatusOpen {
		t.Fatalf("result=%+v", result)
	}
	records, err := models.ListReviewRecords(db, report.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d want 3", len(records))
	}
	if records[0].ApprovalCount != 1 || records[1].Status != models.ReviewStatusFlagged {
		t.Fatalf("records not rebuilt: %+v", records)
	}

	again, err := s.ReconcileReport(context.Background(), report.ID, false)
	if err != nil || again.RecordsRewritten != 0 {
		t.Fatalf("second reconcile=%+v err=%v", again, err)
	}
}

func TestListReviewItems_OrderingAndFilters(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 4)
	s := newService(db)

	// page order reverses the entry order
	for i, tx := range txs {
		pos := models.ReportTransactionPosition{ReportId: report.ID, TransactionId: tx, Position: len(txs) - i}
		if err := db.Create(&pos).Error; err != nil {
			t.Fatalf("create position: %v", err)
		}
	}
	mustApprove(t, s, report.ID, txs[0], "ana")
	mustFlag(t, s, report.ID, txs[2], "bruno", "data incorreta")

	list := func(mode models.SortMode, filter models.ReviewFilter) []int {
		seq, err := s.ListReviewItems(context.Background(), workflow.ListReviewItemsInput{
			ReportId: report.ID, ReviewerId: "ana", SortMode: mode, Filter: filter,
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var ids []int
		for item := range seq {
			ids = append(ids, item.TransactionId)
		}
		return ids
	}

	if got := list(models.SortModeAuto, models.ReviewFilterAll); !slices.Equal(got, []int{txs[3], txs[2], txs[1], txs[0]}) {
		t.Fatalf("auto order=%v", got)
	}
	if got := list(models.SortModeEntry, models.ReviewFilterAll); !slices.Equal(got, txs) {
		t.Fatalf("entry order=%v", got)
	}
	if got := list(models.SortModeStatus, models.ReviewFilterAll); !slices.Equal(got, []int{txs[3], txs[1], txs[0], txs[2]}) {
		t.Fatalf("status order=%v", got)
	}
	if got := list(models.SortModeEntry, models.ReviewFilterFlagged); !slices.Equal(got, []int{txs[2]}) {
		t.Fatalf("flagged=%v", got)
	}
	if got := list(models.SortModeEntry, models.ReviewFilterMinePending); !slices.Equal(got, []int{txs[1], txs[2], txs[3]}) {
		t.Fatalf("mine pending=%v", got)
	}

	// a position missing for one visible item drops the whole set to entry order
	if err := db.Where("transaction_id = ?", txs[1]).Delete(&models.ReportTransactionPosition{}).Error; err != nil {
		t.Fatalf("delete position: %v", err)
	}
	if got := list(models.SortModeCustom, models.ReviewFilterAll); !slices.Equal(got, txs) {
		t.Fatalf("partial custom order=%v", got)
	}
}

func TestExportReviewSheet(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	s := newService(db)
	mustFlag(t, s, report.ID, txs[1], "ana", "juros ausente")

	var buf bytes.Buffer
	err := s.ExportReviewSheet(context.Background(), &buf, workflow.ListReviewItemsInput{
		ReportId: report.ID, ReviewerId: "ana", SortMode: models.SortModeEntry, Filter: models.ReviewFilterAll,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Review")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows=%d want header + 3", len(rows))
	}
	if rows[2][4] != string(models.ReviewStatusFlagged) || rows[2][7] != "juros ausente" {
		t.Fatalf("flagged row=%v", rows[2])
	}
	signatures, err := f.GetCellValue("Summary", "B10")
	if err != nil || signatures != "0/3" {
		t.Fatalf("signatures cell=%q err=%v", signatures, err)
	}
}

type failingOrderSource struct{}

func (failingOrderSource) GetCustomOrder(ctx context.Context, reportId int) (map[int]int, error) {
	return nil, errors.New("extraction service unavailable")
}

func TestListReviewItems_CustomOrderFailureFallsBackToEntryOrder(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	s := newService(db, workflow.WithCustomOrderSource(failingOrderSource{}))

	seq, err := s.ListReviewItems(context.Background(), workflow.ListReviewItemsInput{
		ReportId: report.ID, ReviewerId: "ana", SortMode: models.SortModeCustom, Filter: models.ReviewFilterAll,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := slices.Collect(seq)
	if len(got) != 3 || got[0].TransactionId != txs[0] || got[0].Position != nil {
		t.Fatalf("items=%+v", got)
	}
}

func TestListReviewItems_UnreachableCacheKeepsPageOrder(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	for i, tx := range txs {
		pos := models.ReportTransactionPosition{ReportId: report.ID, TransactionId: tx, Position: len(txs) - i}
		if err := db.Create(&pos).Error; err != nil {
			t.Fatalf("create position: %v", err)
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})
	s := newService(db)

	seq, err := s.ListReviewItems(context.Background(), workflow.ListReviewItemsInput{
		ReportId: report.ID, ReviewerId: "ana", SortMode: models.SortModeCustom, Filter: models.ReviewFilterAll,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := slices.Collect(seq)
	if len(got) != 3 || got[0].TransactionId != txs[2] || got[0].Position == nil {
		t.Fatalf("items=%+v want page order", got)
	}
}
