package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/fiscal_review/models"
)

func vote(reviewer string, decision models.VoteDecision) models.ReviewVote {
	v := models.ReviewVote{ReviewerId: reviewer, Decision: decision}
	if decision == models.VoteDecisionDivergent {
		now := time.Now()
		v.DivergedAt = &now
		obs := "missing document"
		v.Observation = &obs
	}
	return v
}

func TestAggregateVotes_Counts(t *testing.T) {
	agg := models.AggregateVotes([]models.ReviewVote{
		vote("ana", models.VoteDecisionApproved),
		vote("bruno", models.VoteDecisionApproved),
		vote("carla", models.VoteDecisionDivergent),
	})
	if agg.ApprovalCount != 2 || agg.DivergentCount != 1 || agg.ReviewCount != 3 {
		t.Fatalf("unexpected counts: %+v", agg)
	}
	if !agg.IsDiligence {
		t.Fatalf("divergent vote must open diligence")
	}
	if got := models.DeriveReviewStatus(agg); got != models.ReviewStatusFlagged {
		t.Fatalf("status=%s want flagged", got)
	}
}

func TestAggregateVotes_DuplicateReviewerCountedOnce(t *testing.T) {
	agg := models.AggregateVotes([]models.ReviewVote{
		vote("ana", models.VoteDecisionApproved),
		vote("ana", models.VoteDecisionApproved),
	})
	if agg.ApprovalCount != 1 || agg.ReviewCount != 1 {
		t.Fatalf("duplicate reviewer counted twice: %+v", agg)
	}
}

func TestDeriveReviewStatus(t *testing.T) {
	cases := []struct {
		name  string
		votes []models.ReviewVote
		want  models.ReviewStatus
	}{
		{"no votes", nil, models.ReviewStatusPending},
		{"two approvals", []models.ReviewVote{
			vote("ana", models.VoteDecisionApproved),
			vote("bruno", models.VoteDecisionApproved),
		}, models.ReviewStatusPending},
		{"quorum", []models.ReviewVote{
			vote("ana", models.VoteDecisionApproved),
			vote("bruno", models.VoteDecisionApproved),
			vote("carla", models.VoteDecisionApproved),
		}, models.ReviewStatusApproved},
		{"single divergence", []models.ReviewVote{
			vote("ana", models.VoteDecisionDivergent),
		}, models.ReviewStatusFlagged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := models.DeriveReviewStatus(models.AggregateVotes(tc.votes)); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

// A flagger switching back to approved does not close the diligence round.
func TestAggregateVotes_WithdrawnDivergenceKeepsDiligence(t *testing.T) {
	withdrawn := vote("carla", models.VoteDecisionDivergent)
	withdrawn.Decision = models.VoteDecisionApproved
	agg := models.AggregateVotes([]models.ReviewVote{
		vote("ana", models.VoteDecisionApproved),
		vote("bruno", models.VoteDecisionApproved),
		withdrawn,
	})
	if !agg.IsDiligence {
		t.Fatalf("withdrawn divergence must keep diligence open")
	}
	if agg.DiligenceResolved() {
		t.Fatalf("diligence without acknowledgments must be unresolved")
	}
	if got := models.DeriveReviewStatus(agg); got != models.ReviewStatusPending {
		t.Fatalf("status=%s want pending", got)
	}
}

func TestDiligenceResolved_NeedsAllAcks(t *testing.T) {
	votes := []models.ReviewVote{
		vote("ana", models.VoteDecisionApproved),
		vote("bruno", models.VoteDecisionApproved),
		vote("carla", models.VoteDecisionDivergent),
	}
	for i := 0; i < 2; i++ {
		votes[i].DiligenceAck = true
	}
	if models.AggregateVotes(votes).DiligenceResolved() {
		t.Fatalf("two acknowledgments must not resolve diligence")
	}
	votes[2].DiligenceAck = true
	if !models.AggregateVotes(votes).DiligenceResolved() {
		t.Fatalf("three acknowledgments must resolve diligence")
	}
}

func TestReviewerPending(t *testing.T) {
	approved := vote("ana", models.VoteDecisionApproved)
	clean := models.VoteAggregate{ApprovalCount: 1, ReviewCount: 1}
	diligence := models.VoteAggregate{ApprovalCount: 1, DivergentCount: 1, ReviewCount: 2, IsDiligence: true}

	if !models.ReviewerPending(nil, clean) {
		t.Fatalf("no vote must be pending")
	}
	if models.ReviewerPending(&approved, clean) {
		t.Fatalf("decided without diligence must not be pending")
	}
	if !models.ReviewerPending(&approved, diligence) {
		t.Fatalf("unacknowledged diligence must be pending")
	}
	approved.DiligenceAck = true
	if models.ReviewerPending(&approved, diligence) {
		t.Fatalf("acknowledged diligence must not be pending")
	}
}

func TestLatestObservation(t *testing.T) {
	older := vote("ana", models.VoteDecisionDivergent)
	older.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := vote("bruno", models.VoteDecisionDivergent)
	obs := "juros ausente"
	newer.Observation = &obs
	newer.UpdatedAt = older.UpdatedAt.Add(time.Hour)

	got := models.LatestObservation([]models.ReviewVote{older, newer, vote("carla", models.VoteDecisionApproved)})
	if got == nil || *got != "juros ausente" {
		t.Fatalf("latest observation=%v", got)
	}
	if models.LatestObservation([]models.ReviewVote{vote("carla", models.VoteDecisionApproved)}) != nil {
		t.Fatalf("approved votes carry no observation")
	}
}
