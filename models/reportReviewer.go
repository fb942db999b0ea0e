package models

import (
	"time"

	"gorm.io/gorm"
)

// ReportReviewer is one of the QuorumSize seats of a report's review panel.
type ReportReviewer struct {
	ID           int       `gorm:"primary_key" json:"id"`
	ReportId     int       `gorm:"not null;uniqueIndex:idx_report_reviewers_reviewer,priority:1;uniqueIndex:idx_report_reviewers_seat,priority:1" json:"report_id"`
	ReviewerId   string    `gorm:"size:64;not null;uniqueIndex:idx_report_reviewers_reviewer,priority:2" json:"reviewer_id"`
	ReviewerName string    `gorm:"size:100" json:"reviewer_name"`
	Seat         int       `gorm:"not null;uniqueIndex:idx_report_reviewers_seat,priority:2" json:"seat"`
	JoinedAt     time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func ListReportReviewers(tx *gorm.DB, reportId int) ([]ReportReviewer, error) {
	var reviewers []ReportReviewer
	if err := tx.Where("report_id = ?", reportId).Order("seat ASC").Find(&reviewers).Error; err != nil {
		return nil, err
	}
	return reviewers, nil
}

// ClaimReviewerSeat returns the reviewer's seat, taking the next free one on first use.
// Must run under the report lock; the seat unique index backs it up.
func ClaimReviewerSeat(tx *gorm.DB, reportId int, reviewerId string, reviewerName string) (*ReportReviewer, error) {
	reviewers, err := ListReportReviewers(tx, reportId)
	if err != nil {
		return nil, err
	}
	for i := range reviewers {
		if reviewers[i].ReviewerId == reviewerId {
			return &reviewers[i], nil
		}
	}
	if len(reviewers) >= QuorumSize {
		return nil, ErrReviewPanelFull
	}
	seat := ReportReviewer{
		ReportId:     reportId,
		ReviewerId:   reviewerId,
		ReviewerName: reviewerName,
		Seat:         len(reviewers) + 1,
	}
	if err := tx.Create(&seat).Error; err != nil {
		return nil, err
	}
	return &seat, nil
}
