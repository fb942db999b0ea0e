package models

// VoteAggregate is the per-transaction projection of its votes. It is always recomputed
// from the full vote set and never stored as the source of truth.
type VoteAggregate struct {
	ApprovalCount     int  `json:"approval_count"`
	DivergentCount    int  `json:"divergent_count"`
	IsDiligence       bool `json:"is_diligence"`
	DiligenceAckCount int  `json:"diligence_ack_count"`
	ReviewCount       int  `json:"review_count"`
}

// AggregateVotes folds the votes of one transaction. It has no side effects.
//
// A transaction is in diligence while any reviewer holds a divergent decision, and stays in
// diligence after a flagger switches back to approved: the round is closed only by
// acknowledgments, never by withdrawal.
func AggregateVotes(votes []ReviewVote) VoteAggregate {
	var agg VoteAggregate
	seen := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		if _, dup := seen[v.ReviewerId]; dup {
			continue
		}
		seen[v.ReviewerId] = struct{}{}
		agg.ReviewCount++
		switch v.Decision {
		case VoteDecisionApproved:
			agg.ApprovalCount++
		case VoteDecisionDivergent:
			agg.DivergentCount++
		}
		if v.Decision == VoteDecisionDivergent || v.DivergedAt != nil {
			agg.IsDiligence = true
		}
		if v.DiligenceAck {
			agg.DiligenceAckCount++
		}
	}
	return agg
}

// DiligenceResolved is true when there is no diligence or every reviewer acknowledged it.
func (a VoteAggregate) DiligenceResolved() bool {
	return !a.IsDiligence || a.DiligenceAckCount >= QuorumSize
}

// DeriveReviewStatus maps an aggregate to the shared record status:
// flagged iff a divergent decision is held, approved once all seats approved and no
// divergence was ever recorded, pending otherwise.
func DeriveReviewStatus(agg VoteAggregate) ReviewStatus {
	if agg.DivergentCount > 0 {
		return ReviewStatusFlagged
	}
	if agg.ApprovalCount >= QuorumSize && !agg.IsDiligence {
		return ReviewStatusApproved
	}
	return ReviewStatusPending
}

// ReviewerPending reports whether a reviewer still owes work on a transaction:
// no decision yet, or the transaction is in diligence and they have not acknowledged it.
func ReviewerPending(vote *ReviewVote, agg VoteAggregate) bool {
	if vote == nil {
		return true
	}
	return agg.IsDiligence && !vote.DiligenceAck
}

// LatestObservation is the observation of the most recently updated divergent vote.
func LatestObservation(votes []ReviewVote) *string {
	var latest *ReviewVote
	for i := range votes {
		v := &votes[i]
		if v.Decision != VoteDecisionDivergent || v.Observation == nil {
			continue
		}
		if latest == nil || v.UpdatedAt.After(latest.UpdatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil
	}
	obs := *latest.Observation
	return &obs
}
