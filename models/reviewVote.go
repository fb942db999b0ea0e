package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewVote is one reviewer's decision on one transaction, unique per (report, transaction, reviewer).
type ReviewVote struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ReportId      int          `gorm:"not null;uniqueIndex:idx_review_votes_triple,priority:1" json:"report_id"`
	TransactionId int          `gorm:"not null;uniqueIndex:idx_review_votes_triple,priority:2" json:"transaction_id"`
	ReviewerId    string       `gorm:"size:64;not null;uniqueIndex:idx_review_votes_triple,priority:3" json:"reviewer_id"`
	ReviewerName  string       `gorm:"size:100" json:"reviewer_name"`
	Decision      VoteDecision `gorm:"size:20;not null" json:"decision"`
	Observation   *string      `gorm:"type:text" json:"observation"`
	DiligenceAck  bool         `gorm:"not null;default:false" json:"diligence_ack"`
	// first time this reviewer flagged the transaction; never cleared, keeps the diligence round open
	DivergedAt *time.Time `json:"diverged_at"`
	AckedAt    *time.Time `json:"acked_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// UpsertReviewVote writes the decision in a single INSERT .. ON CONFLICT statement keyed by
// the triple. diligence_ack and diverged_at are never touched by the update branch.
func UpsertReviewVote(tx *gorm.DB, vote *ReviewVote) error {
	now := time.Now().UTC()
	vote.CreatedAt = now
	vote.UpdatedAt = now
	if vote.Decision == VoteDecisionDivergent && vote.DivergedAt == nil {
		vote.DivergedAt = &now
	}
	updates := []string{"decision", "observation", "updated_at"}
	// a request without a name keeps the stored one
	if strings.TrimSpace(vote.ReviewerName) != "" {
		updates = append(updates, "reviewer_name")
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}, {Name: "transaction_id"}, {Name: "reviewer_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(vote).Error
	if err != nil {
		return err
	}
	if vote.Decision != VoteDecisionDivergent {
		return nil
	}
	// an existing row keeps its original divergence time
	return tx.Model(&ReviewVote{}).
		Where("report_id = ? AND transaction_id = ? AND reviewer_id = ?", vote.ReportId, vote.TransactionId, vote.ReviewerId).
		Where("diverged_at IS NULL").
		Update("diverged_at", now).Error
}

// AcknowledgeDiligence sets diligence_ack once; later calls are no-ops.
// Returns whether this call flipped the flag.
func AcknowledgeDiligence(tx *gorm.DB, reportId int, transactionId int, reviewerId string) (bool, error) {
	now := time.Now().UTC()
	result := tx.Model(&ReviewVote{}).
		Where("report_id = ? AND transaction_id = ? AND reviewer_id = ?", reportId, transactionId, reviewerId).
		Where("diligence_ack = ?", false).
		Updates(map[string]interface{}{"diligence_ack": true, "acked_at": &now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListReviewVotes returns the report's votes, optionally narrowed to some transactions.
func ListReviewVotes(tx *gorm.DB, reportId int, transactionIds ...int) ([]ReviewVote, error) {
	var votes []ReviewVote
	dbCtx := tx.Where("report_id = ?", reportId)
	if len(transactionIds) > 0 {
		dbCtx = dbCtx.Where("transaction_id IN ?", transactionIds)
	}
	if err := dbCtx.Order("transaction_id ASC, id ASC").Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}
