package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRecord is the shared review state of one transaction.
// It is a persisted projection of the transaction's votes, rewritten after every vote change.
type ReviewRecord struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ReportId      int          `gorm:"not null;uniqueIndex:idx_review_records_report_tx,priority:1" json:"report_id"`
	TransactionId int          `gorm:"not null;uniqueIndex:idx_review_records_report_tx,priority:2" json:"transaction_id"`
	EntryIndex    int          `gorm:"not null;default:0" json:"entry_index"`
	Status        ReviewStatus `gorm:"size:20;not null;default:pending" json:"status"`
	Observation   *string      `gorm:"type:text" json:"observation"`
	ApprovalCount int          `gorm:"not null;default:0" json:"approval_count"`
	IsDiligence   bool         `gorm:"not null;default:false" json:"is_diligence"`
	AckCount      int          `gorm:"not null;default:0" json:"diligence_ack_count"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProjectReviewRecord builds the record a transaction must have for the given votes.
func ProjectReviewRecord(reportId int, entry ReviewEntry, votes []ReviewVote) ReviewRecord {
	agg := AggregateVotes(votes)
	return ReviewRecord{
		ReportId:      reportId,
		TransactionId: entry.TransactionId,
		EntryIndex:    entry.EntryIndex,
		Status:        DeriveReviewStatus(agg),
		Observation:   LatestObservation(votes),
		ApprovalCount: agg.ApprovalCount,
		IsDiligence:   agg.IsDiligence,
		AckCount:      agg.DiligenceAckCount,
	}
}

// SaveReviewRecord upserts the projection keyed by (report, transaction).
func SaveReviewRecord(tx *gorm.DB, record *ReviewRecord) error {
	record.UpdatedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "report_id"}, {Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entry_index", "status", "observation", "approval_count", "is_diligence", "ack_count", "updated_at",
		}),
	}).Create(record).Error
}

func ListReviewRecords(db *gorm.DB, reportId int) ([]ReviewRecord, error) {
	var records []ReviewRecord
	if err := db.Where("report_id = ?", reportId).Order("entry_index ASC, transaction_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
