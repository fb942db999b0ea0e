package models

import (
	"errors"
	"strings"
)

// QuorumSize is the number of fiscal reviewers required for approval coverage and for signatures.
const QuorumSize = 3

type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusFinished ReportStatus = "finished"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusFlagged  ReviewStatus = "flagged"
)

// display rank used by the status sort mode: pending < flagged < approved
func (s ReviewStatus) rank() int {
	switch s {
	case ReviewStatusPending:
		return 0
	case ReviewStatusFlagged:
		return 1
	case ReviewStatusApproved:
		return 2
	default:
		return 3
	}
}

type VoteDecision string

const (
	VoteDecisionApproved  VoteDecision = "approved"
	VoteDecisionDivergent VoteDecision = "divergent"
)

// convert input to enum type
func ParseVoteDecision(s string) (VoteDecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return VoteDecisionApproved, nil
	case "divergent", "flag", "flagged":
		return VoteDecisionDivergent, nil
	default:
		return "", errors.New("invalid vote decision")
	}
}

type SortMode string

const (
	// SortModeAuto uses the custom order when every visible item has a position, else entry order.
	SortModeAuto   SortMode = "auto"
	SortModeCustom SortMode = "custom"
	SortModeEntry  SortMode = "entry"
	SortModeStatus SortMode = "status"
	SortModeAmount SortMode = "amount"
)

func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SortModeAuto, nil
	case "custom", "pdf":
		return SortModeCustom, nil
	case "entry", "index":
		return SortModeEntry, nil
	case "status":
		return SortModeStatus, nil
	case "amount":
		return SortModeAmount, nil
	default:
		return "", errors.New("invalid sort mode")
	}
}

type ReviewFilter string

const (
	ReviewFilterAll         ReviewFilter = "all"
	ReviewFilterPending     ReviewFilter = "pending"
	ReviewFilterFlagged     ReviewFilter = "flagged"
	ReviewFilterApproved    ReviewFilter = "approved"
	ReviewFilterDiligence   ReviewFilter = "diligence"
	ReviewFilterMinePending ReviewFilter = "mine_pending"
)

func ParseReviewFilter(s string) (ReviewFilter, error) {
	switch f := ReviewFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ReviewFilterAll, nil
	case ReviewFilterAll, ReviewFilterPending, ReviewFilterFlagged, ReviewFilterApproved,
		ReviewFilterDiligence, ReviewFilterMinePending:
		return f, nil
	default:
		return "", errors.New("invalid review filter")
	}
}

type NotEligibleReason string

const (
	NotEligiblePendingWork         NotEligibleReason = "PENDING_WORK"
	NotEligibleUnresolvedDiligence NotEligibleReason = "UNRESOLVED_DILIGENCE"
	NotEligibleAlreadySigned       NotEligibleReason = "ALREADY_SIGNED"
	NotEligibleReviewPanelFull     NotEligibleReason = "REVIEW_PANEL_FULL"
)

const (
	ReviewEventReportFinished = "report.finished"
	ReviewEventSigned         = "report.signed"
)
