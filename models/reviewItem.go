package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReviewerDecision is one panel member's current stance on a transaction.
type ReviewerDecision struct {
	ReviewerId   string       `json:"reviewer_id"`
	ReviewerName string       `json:"reviewer_name"`
	Decision     VoteDecision `json:"decision"`
	Observation  *string      `json:"observation"`
	DiligenceAck bool         `json:"diligence_ack"`
}

// ReviewItem is a transaction joined with its review state, as seen by one reviewer.
type ReviewItem struct {
	TransactionId     int                `json:"transaction_id"`
	EntryIndex        int                `json:"entry_index"`
	TransactionDate   time.Time          `json:"transaction_date"`
	Description       string             `json:"description"`
	Amount            decimal.Decimal    `json:"amount"`
	Status            ReviewStatus       `json:"status"`
	Observation       *string            `json:"observation"`
	ApprovalCount     int                `json:"approval_count"`
	ReviewCount       int                `json:"review_count"`
	IsDiligence       bool               `json:"is_diligence"`
	DiligenceAckCount int                `json:"diligence_ack_count"`
	MyDecision        *VoteDecision      `json:"my_decision"`
	MyDiligenceAck    bool               `json:"my_diligence_ack"`
	NeedsDiligenceAck bool               `json:"needs_diligence_ack"`
	MyPending         bool               `json:"my_pending"`
	Votes             []ReviewerDecision `json:"votes"`
	// page order in the original statement, nil when extraction found none
	Position *int `json:"position"`
}

// BuildReviewItem joins a transaction with its votes from the reviewer's point of view.
func BuildReviewItem(t FiscalTransaction, votes []ReviewVote, reviewerId string, order map[int]int) ReviewItem {
	agg := AggregateVotes(votes)
	item := ReviewItem{
		TransactionId:     t.ID,
		EntryIndex:        t.EntryIndex,
		TransactionDate:   t.TransactionDate,
		Description:       t.Description,
		Amount:            t.Amount,
		Status:            DeriveReviewStatus(agg),
		Observation:       LatestObservation(votes),
		ApprovalCount:     agg.ApprovalCount,
		ReviewCount:       agg.ReviewCount,
		IsDiligence:       agg.IsDiligence,
		DiligenceAckCount: agg.DiligenceAckCount,
		Votes:             make([]ReviewerDecision, 0, len(votes)),
	}
	var mine *ReviewVote
	for i := range votes {
		v := &votes[i]
		item.Votes = append(item.Votes, ReviewerDecision{
			ReviewerId:   v.ReviewerId,
			ReviewerName: v.ReviewerName,
			Decision:     v.Decision,
			Observation:  v.Observation,
			DiligenceAck: v.DiligenceAck,
		})
		if v.ReviewerId == reviewerId {
			mine = v
		}
	}
	if mine != nil {
		decision := mine.Decision
		item.MyDecision = &decision
		item.MyDiligenceAck = mine.DiligenceAck
		item.NeedsDiligenceAck = agg.IsDiligence && !mine.DiligenceAck
	}
	item.MyPending = ReviewerPending(mine, agg)
	if pos, ok := order[t.ID]; ok {
		p := pos
		item.Position = &p
	}
	return item
}

// Matches reports whether the item is visible under the filter.
func (i ReviewItem) Matches(filter ReviewFilter) bool {
	switch filter {
	case ReviewFilterPending:
		return i.Status == ReviewStatusPending
	case ReviewFilterFlagged:
		return i.Status == ReviewStatusFlagged
	case ReviewFilterApproved:
		return i.Status == ReviewStatusApproved
	case ReviewFilterDiligence:
		return i.IsDiligence
	case ReviewFilterMinePending:
		return i.MyPending
	default:
		return true
	}
}
