package models

import (
	"gorm.io/gorm"
)

// ReportSnapshot is every row the review rules of one report depend on, read in one transaction.
type ReportSnapshot struct {
	Report     Report
	Entries    []ReviewEntry
	Votes      map[int][]ReviewVote
	Reviewers  []ReportReviewer
	Signatures []Signature
}

// ReviewerSummary is one seat of the panel as shown on the progress view.
type ReviewerSummary struct {
	ReviewerId   string `json:"reviewer_id"`
	ReviewerName string `json:"reviewer_name"`
	Seat         int    `json:"seat"`
	Pending      int    `json:"pending"`
	HasSigned    bool   `json:"has_signed"`
}

type ReportProgress struct {
	ReportId            int               `json:"report_id"`
	Total               int               `json:"total"`
	Approved            int               `json:"approved"`
	Flagged             int               `json:"flagged"`
	Pending             int               `json:"pending"`
	DiligenceCount      int               `json:"diligence_count"`
	UnresolvedDiligence int               `json:"unresolved_diligence"`
	SignatureCount      int               `json:"signature_count"`
	Reviewers           []ReviewerSummary `json:"reviewers"`
	IsFinished          bool              `json:"is_finished"`
}

type ReviewerProgress struct {
	ReviewerId        string             `json:"reviewer_id"`
	Seat              int                `json:"seat"`
	Pending           int                `json:"pending"`
	NeedsDiligenceAck int                `json:"needs_diligence_ack"`
	HasSigned         bool               `json:"has_signed"`
	CanSign           bool               `json:"can_sign"`
	BlockedReason     *NotEligibleReason `json:"blocked_reason"`
}

// LoadReportSnapshot reads entries, votes, seats and signatures of the report through tx.
// Call it after LockReport so the snapshot matches the write that follows.
func LoadReportSnapshot(tx *gorm.DB, report *Report) (*ReportSnapshot, error) {
	entries, err := ListReviewEntries(tx, report.ID)
	if err != nil {
		return nil, err
	}
	votes, err := ListReviewVotes(tx, report.ID)
	if err != nil {
		return nil, err
	}
	reviewers, err := ListReportReviewers(tx, report.ID)
	if err != nil {
		return nil, err
	}
	signatures, err := ListSignatures(tx, report.ID)
	if err != nil {
		return nil, err
	}

	byTx := make(map[int][]ReviewVote, len(entries))
	for _, v := range votes {
		byTx[v.TransactionId] = append(byTx[v.TransactionId], v)
	}
	return &ReportSnapshot{
		Report:     *report,
		Entries:    entries,
		Votes:      byTx,
		Reviewers:  reviewers,
		Signatures: signatures,
	}, nil
}

func (s *ReportSnapshot) HasTransaction(transactionId int) bool {
	_, ok := s.Entry(transactionId)
	return ok
}

func (s *ReportSnapshot) Entry(transactionId int) (ReviewEntry, bool) {
	for _, e := range s.Entries {
		if e.TransactionId == transactionId {
			return e, true
		}
	}
	return ReviewEntry{}, false
}

func (s *ReportSnapshot) Aggregate(transactionId int) VoteAggregate {
	return AggregateVotes(s.Votes[transactionId])
}

// VoteOf returns the reviewer's vote on the transaction, nil when they have not decided.
func (s *ReportSnapshot) VoteOf(transactionId int, reviewerId string) *ReviewVote {
	votes := s.Votes[transactionId]
	for i := range votes {
		if votes[i].ReviewerId == reviewerId {
			return &votes[i]
		}
	}
	return nil
}

func (s *ReportSnapshot) Seat(reviewerId string) *ReportReviewer {
	for i := range s.Reviewers {
		if s.Reviewers[i].ReviewerId == reviewerId {
			return &s.Reviewers[i]
		}
	}
	return nil
}

func (s *ReportSnapshot) HasSigned(reviewerId string) bool {
	for _, sig := range s.Signatures {
		if sig.ReviewerId == reviewerId {
			return true
		}
	}
	return false
}

// PendingFor counts the transactions the reviewer still owes a decision or an acknowledgment on.
func (s *ReportSnapshot) PendingFor(reviewerId string) int {
	pending := 0
	for _, e := range s.Entries {
		if ReviewerPending(s.VoteOf(e.TransactionId, reviewerId), s.Aggregate(e.TransactionId)) {
			pending++
		}
	}
	return pending
}

// NeedsDiligenceAckFor counts diligences the reviewer decided on but has not acknowledged.
func (s *ReportSnapshot) NeedsDiligenceAckFor(reviewerId string) int {
	count := 0
	for _, e := range s.Entries {
		vote := s.VoteOf(e.TransactionId, reviewerId)
		if vote != nil && !vote.DiligenceAck && s.Aggregate(e.TransactionId).IsDiligence {
			count++
		}
	}
	return count
}

// UnresolvedDiligence counts transactions in diligence with fewer than QuorumSize acknowledgments.
func (s *ReportSnapshot) UnresolvedDiligence() int {
	count := 0
	for _, e := range s.Entries {
		if !s.Aggregate(e.TransactionId).DiligenceResolved() {
			count++
		}
	}
	return count
}

// transactionPending is true when any of the QuorumSize seats still owes work on the transaction.
// Seats nobody has taken yet count as pending.
func (s *ReportSnapshot) transactionPending(transactionId int, agg VoteAggregate) bool {
	if len(s.Reviewers) < QuorumSize {
		return true
	}
	for _, r := range s.Reviewers {
		if ReviewerPending(s.VoteOf(transactionId, r.ReviewerId), agg) {
			return true
		}
	}
	return false
}

// SignBlocker returns the first unmet signing precondition for the reviewer, nil when they may sign.
func (s *ReportSnapshot) SignBlocker(reviewerId string) *NotEligibleError {
	if s.Seat(reviewerId) == nil && len(s.Reviewers) >= QuorumSize {
		return &NotEligibleError{Reason: NotEligibleReviewPanelFull}
	}
	if s.HasSigned(reviewerId) {
		return &NotEligibleError{Reason: NotEligibleAlreadySigned}
	}
	if pending := s.PendingFor(reviewerId); pending > 0 {
		return &NotEligibleError{Reason: NotEligiblePendingWork, Count: pending}
	}
	if unresolved := s.UnresolvedDiligence(); unresolved > 0 {
		return &NotEligibleError{Reason: NotEligibleUnresolvedDiligence, Count: unresolved}
	}
	return nil
}

func (s *ReportSnapshot) Progress() ReportProgress {
	progress := ReportProgress{
		ReportId:       s.Report.ID,
		Total:          len(s.Entries),
		SignatureCount: len(s.Signatures),
	}
	for _, e := range s.Entries {
		agg := s.Aggregate(e.TransactionId)
		switch DeriveReviewStatus(agg) {
		case ReviewStatusApproved:
			progress.Approved++
		case ReviewStatusFlagged:
			progress.Flagged++
		}
		if agg.IsDiligence {
			progress.DiligenceCount++
			if !agg.DiligenceResolved() {
				progress.UnresolvedDiligence++
			}
		}
		if s.transactionPending(e.TransactionId, agg) {
			progress.Pending++
		}
	}
	progress.Reviewers = make([]ReviewerSummary, 0, len(s.Reviewers))
	for _, r := range s.Reviewers {
		progress.Reviewers = append(progress.Reviewers, ReviewerSummary{
			ReviewerId:   r.ReviewerId,
			ReviewerName: r.ReviewerName,
			Seat:         r.Seat,
			Pending:      s.PendingFor(r.ReviewerId),
			HasSigned:    s.HasSigned(r.ReviewerId),
		})
	}
	progress.IsFinished = progress.Pending == 0 &&
		progress.UnresolvedDiligence == 0 &&
		progress.SignatureCount >= QuorumSize
	return progress
}

func (s *ReportSnapshot) ReviewerProgress(reviewerId string) ReviewerProgress {
	rp := ReviewerProgress{
		ReviewerId:        reviewerId,
		Pending:           s.PendingFor(reviewerId),
		NeedsDiligenceAck: s.NeedsDiligenceAckFor(reviewerId),
		HasSigned:         s.HasSigned(reviewerId),
	}
	if seat := s.Seat(reviewerId); seat != nil {
		rp.Seat = seat.Seat
	}
	if blocker := s.SignBlocker(reviewerId); blocker != nil {
		reason := blocker.Reason
		rp.BlockedReason = &reason
	} else {
		rp.CanSign = true
	}
	return rp
}

// DerivedStatus is the authoritative completion state; Report.Status only caches it.
func (s *ReportSnapshot) DerivedStatus() ReportStatus {
	if s.Progress().IsFinished {
		return ReportStatusFinished
	}
	return ReportStatusOpen
}
