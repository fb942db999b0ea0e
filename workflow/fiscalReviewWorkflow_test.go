package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/workflow"
)

func TestSubmitVote_FlaggedOnlyWhileDivergentVoteHeld(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 1)
	s := newService(db)
	tx := txs[0]

	for i, r := range reviewers {
		record := mustApprove(t, s, report.ID, tx, r)
		if record.ApprovalCount != i+1 {
			t.Fatalf("approval count=%d want %d", record.ApprovalCount, i+1)
		}
	}
	record := mustApprove(t, s, report.ID, tx, "carla")
	if record.Status != models.ReviewStatusApproved || record.ApprovalCount != 3 {
		t.Fatalf("record=%+v want approved 3/3", record)
	}

	record = mustFlag(t, s, report.ID, tx, "bruno", "nota fiscal divergente")
	if record.Status != models.ReviewStatusFlagged || !record.IsDiligence || record.ApprovalCount != 2 {
		t.Fatalf("record=%+v want flagged diligence", record)
	}
	if record.Observation == nil || *record.Observation != "nota fiscal divergente" {
		t.Fatalf("observation=%v", record.Observation)
	}

	// the flagger changing their mind clears the flag but not the diligence round
	record = mustApprove(t, s, report.ID, tx, "bruno")
	if record.Status == models.ReviewStatusFlagged {
		t.Fatalf("no divergent vote left, status must not be flagged")
	}
	if !record.IsDiligence {
		t.Fatalf("withdrawal must not close the diligence round")
	}
	if p := progress(t, s, report.ID); p.UnresolvedDiligence != 1 {
		t.Fatalf("unresolved=%d want 1", p.UnresolvedDiligence)
	}
}

func TestFlag_NeedsDiligenceAckFromOtherReviewers(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 7)
	s := newService(db)
	t7 := txs[6]

	mustApprove(t, s, report.ID, t7, "bruno")
	mustApprove(t, s, report.ID, t7, "carla")
	record := mustFlag(t, s, report.ID, t7, "ana", "juros ausente")
	if record.Status != models.ReviewStatusFlagged {
		t.Fatalf("status=%s want flagged", record.Status)
	}

	item := func(reviewer string) models.ReviewItem {
		seq, err := s.ListReviewItems(context.Background(), workflow.ListReviewItemsInput{
			ReportId:   report.ID,
			ReviewerId: reviewer,
			SortMode:   models.SortModeEntry,
			Filter:     models.ReviewFilterDiligence,
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		items := slices.Collect(seq)
		if len(items) != 1 || items[0].TransactionId != t7 {
			t.Fatalf("diligence items=%+v", items)
		}
		return items[0]
	}
	for _, r := range []string{"bruno", "carla"} {
		if !item(r).NeedsDiligenceAck {
			t.Fatalf("%s must need to acknowledge", r)
		}
	}

	mustAck(t, s, report.ID, t7, "bruno")
	if item("bruno").NeedsDiligenceAck {
		t.Fatalf("bruno acknowledged already")
	}
	if !item("carla").NeedsDiligenceAck {
		t.Fatalf("carla has not acknowledged yet")
	}
	if got := item("carla").Observation; got == nil || *got != "juros ausente" {
		t.Fatalf("observation=%v", got)
	}
}

func TestSubmitVote_EmptyObservationChangesNothing(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 3)
	s := newService(db)
	mustApprove(t, s, report.ID, txs[0], "ana")
	before := progress(t, s, report.ID)

	blank := "   "
	_, err := s.SubmitVote(context.Background(), workflow.NewReviewVote{
		ReportId:      report.ID,
		TransactionId: txs[1],
		ReviewerId:    "bruno",
		Decision:      models.VoteDecisionDivergent,
		Observation:   &blank,
	})
	if !isValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	after := progress(t, s, report.ID)
	if before.Flagged != after.Flagged || before.Pending != after.Pending ||
		before.Approved != after.Approved || before.DiligenceCount != after.DiligenceCount {
		t.Fatalf("progress changed: before=%+v after=%+v", before, after)
	}
	if len(after.Reviewers) != 1 {
		t.Fatalf("rejected vote must not claim a seat, reviewers=%+v", after.Reviewers)
	}
	var votes int64
	if err := db.Model(&models.ReviewVote{}).Where("reviewer_id = ?", "bruno").Count(&votes).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if votes != 0 {
		t.Fatalf("rejected vote was stored")
	}
}

func TestSubmitVote_RejectsBadInput(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 1)
	s := newService(db)

	_, err := s.SubmitVote(context.Background(), workflow.NewReviewVote{
		ReportId: report.ID, TransactionId: txs[0], ReviewerId: "ana", Decision: "maybe",
	})
	if !isValidation(err) {
		t.Fatalf("unknown decision: %v", err)
	}
	_, err = s.Approve(context.Background(), report.ID, txs[0]+100, "ana", "Ana")
	if !isValidation(err) {
		t.Fatalf("foreign transaction: %v", err)
	}
	_, err = s.Approve(context.Background(), report.ID+100, txs[0], "ana", "Ana")
	if err == nil {
		t.Fatalf("expected error for missing report")
	}
}

func TestReviewPanel_FourthReviewerRejected(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 1)
	s := newService(db)
	for _, r := range reviewers {
		mustApprove(t, s, report.ID, txs[0], r)
	}
	_, err := s.Approve(context.Background(), report.ID, txs[0], "diego", "Diego")
	if !errors.Is(err, models.ErrReviewPanelFull) {
		t.Fatalf("expected ErrReviewPanelFull, got %v", err)
	}
}

func TestConfirmDiligence_Idempotent(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 1)
	s := newService(db)
	tx := txs[0]

	mustApprove(t, s, report.ID, tx, "ana")
	mustFlag(t, s, report.ID, tx, "bruno", "saldo inicial errado")

	mustAck(t, s, report.ID, tx, "ana")
	mustAck(t, s, report.ID, tx, "ana")

	var record models.ReviewRecord
	if err := db.Where("report_id = ? AND transaction_id = ?", report.ID, tx).First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AckCount != 1 {
		t.Fatalf("ack count=%d want 1", record.AckCount)
	}
}

func TestConfirmDiligence_Preconditions(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 2)
	s := newService(db)

	mustApprove(t, s, report.ID, txs[0], "ana")
	err := s.ConfirmDiligence(context.Background(), report.ID, txs[0], "ana")
	if !errors.Is(err, models.ErrNotInDiligence) || !isInvalidState(err) {
		t.Fatalf("expected ErrNotInDiligence, got %v", err)
	}

	mustFlag(t, s, report.ID, txs[0], "bruno", "sem comprovante")
	err = s.ConfirmDiligence(context.Background(), report.ID, txs[0], "carla")
	if !errors.Is(err, models.ErrNoDecisionYet) {
		t.Fatalf("expected ErrNoDecisionYet, got %v", err)
	}
	err = s.ConfirmDiligence(context.Background(), report.ID, txs[1]+100, "ana")
	if !isValidation(err) {
		t.Fatalf("foreign transaction: %v", err)
	}
}

func TestBulkApprove_SkipsDiligenceAndDecided(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 4)
	s := newService(db)

	mustFlag(t, s, report.ID, txs[0], "ana", "valor divergente")
	mustFlag(t, s, report.ID, txs[1], "bruno", "lançamento duplicado")
	mustApprove(t, s, report.ID, txs[2], "bruno")

	result, err := s.BulkApprove(context.Background(), workflow.BulkApproveInput{
		ReportId:       report.ID,
		ReviewerId:     "bruno",
		ReviewerName:   "Bruno",
		TransactionIds: txs,
	})
	if err != nil {
		t.Fatalf("bulk approve: %v", err)
	}
	if result.ApprovedCount != 1 {
		t.Fatalf("approved=%d want 1", result.ApprovedCount)
	}
	slices.Sort(result.Skipped)
	if !slices.Equal(result.Skipped, []int{txs[0], txs[1], txs[2]}) {
		t.Fatalf("skipped=%v", result.Skipped)
	}

	var onDiligence int64
	if err := db.Model(&models.ReviewVote{}).
		Where("reviewer_id = ? AND transaction_id = ?", "bruno", txs[0]).
		Count(&onDiligence).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if onDiligence != 0 {
		t.Fatalf("bulk approve touched a diligence transaction")
	}
	var own models.ReviewVote
	if err := db.Where("reviewer_id = ? AND transaction_id = ?", "bruno", txs[1]).First(&own).Error; err != nil {
		t.Fatalf("load vote: %v", err)
	}
	if own.Decision != models.VoteDecisionDivergent {
		t.Fatalf("bulk approve overwrote the reviewer's own flag")
	}
}

func TestBulkApprove_UnknownTransactionRejectsBatch(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 2)
	s := newService(db)

	_, err := s.BulkApprove(context.Background(), workflow.BulkApproveInput{
		ReportId:       report.ID,
		ReviewerId:     "ana",
		TransactionIds: []int{txs[0], txs[1] + 100},
	})
	if !isValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if p := reviewerProgress(t, s, report.ID, "ana"); p.Pending != 2 {
		t.Fatalf("batch partially applied, pending=%d", p.Pending)
	}
}

func TestBulkApprove_EmptyListIsNoop(t *testing.T) {
	db := openReviewDB(t)
	report, _ := seedReport(t, db, 1)
	s := newService(db)

	result, err := s.BulkApprove(context.Background(), workflow.BulkApproveInput{ReportId: report.ID, ReviewerId: "ana"})
	if err != nil || result.ApprovedCount != 0 {
		t.Fatalf("result=%+v err=%v", result, err)
	}
}

func TestSubmitVote_ConcurrentReviewersOnSameTransactions(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 5)
	s := newService(db)

	var wg sync.WaitGroup
	errs := make(chan error, len(reviewers)*len(txs))
	for _, r := range reviewers {
		for _, tx := range txs {
			wg.Add(1)
			go func(reviewer string, txId int) {
				defer wg.Done()
				var err error
				if reviewer == "ana" && txId == txs[0] {
					_, err = s.Flag(context.Background(), report.ID, txId, reviewer, reviewer, "lancamento duplicado")
				} else {
					_, err = s.Approve(context.Background(), report.ID, txId, reviewer, reviewer)
				}
				if err != nil {
					errs <- fmt.Errorf("%s on tx %d: %w", reviewer, txId, err)
				}
			}(r, tx)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent vote failed: %v", err)
	}

	seats, err := models.ListReportReviewers(db, report.ID)
	if err != nil {
		t.Fatalf("list seats: %v", err)
	}
	if len(seats) != 3 {
		t.Fatalf("seats=%d want 3", len(seats))
	}

	p := progress(t, s, report.ID)
	if p.Approved != 4 || p.Flagged != 1 {
		t.Fatalf("approved=%d flagged=%d want 4/1", p.Approved, p.Flagged)
	}

	votes, err := models.ListReviewVotes(db, report.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != len(reviewers)*len(txs) {
		t.Fatalf("vote rows=%d want %d", len(votes), len(reviewers)*len(txs))
	}
	seen := map[string]int{}
	for _, v := range votes {
		seen[fmt.Sprintf("%d/%s", v.TransactionId, v.ReviewerId)]++
	}
	for key, n := range seen {
		if n != 1 {
			t.Fatalf("vote %s stored %d times", key, n)
		}
	}
}

func TestSubmitVote_BlankNameKeepsStoredName(t *testing.T) {
	db := openReviewDB(t)
	report, txs := seedReport(t, db, 1)
	s := newService(db)

	mustApprove(t, s, report.ID, txs[0], "ana")
	if _, err := s.Flag(context.Background(), report.ID, txs[0], "ana", "", "valor divergente do extrato"); err != nil {
		t.Fatalf("flag: %v", err)
	}
	votes, err := models.ListReviewVotes(db, report.ID, txs[0])
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 || votes[0].ReviewerName != "ANA" || votes[0].Decision != models.VoteDecisionDivergent {
		t.Fatalf("votes=%+v want ANA divergent", votes)
	}

	if _, err := s.Approve(context.Background(), report.ID, txs[0], "ana", "Ana Souza"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	votes, err = models.ListReviewVotes(db, report.ID, txs[0])
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if votes[0].ReviewerName != "Ana Souza" {
		t.Fatalf("name=%q want updated name", votes[0].ReviewerName)
	}
}
