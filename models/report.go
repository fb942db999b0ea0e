package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/fiscal_review/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Report is one financial statement sent to fiscal review.
// Status is a cache of the derived completion state, see ReportSnapshot.DerivedStatus.
type Report struct {
	ID           int          `gorm:"primary_key" json:"id"`
	BusinessId   string       `gorm:"index;size:64" json:"business_id"`
	Title        string       `gorm:"size:255;not null" json:"title"`
	Competency   string       `gorm:"size:20;index" json:"competency"`
	AccountType  string       `gorm:"size:50" json:"account_type"`
	TotalEntries int          `gorm:"not null;default:0" json:"total_entries"`
	Status       ReportStatus `gorm:"size:20;not null;default:open" json:"status"`
	FinishedAt   *time.Time   `json:"finished_at"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// LockReport reads the report row with an exclusive row lock.
// Every review mutation takes this lock first so that writers on one report are serialized
// and eligibility checks see the same snapshot as the write that follows them.
// (sqlite ignores FOR UPDATE; its single writer connection gives the same guarantee)
func LockReport(tx *gorm.DB, reportId int) (*Report, error) {
	var report Report
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, reportId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

func GetReport(db *gorm.DB, reportId int) (*Report, error) {
	var report Report
	if err := db.First(&report, reportId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// SyncReportStatus writes the derived status over the cached one when they disagree.
// Returns true when the cache was corrected.
func SyncReportStatus(db *gorm.DB, report *Report, derived ReportStatus) (bool, error) {
	if report.Status == derived {
		return false, nil
	}
	updates := map[string]interface{}{"status": derived}
	var finishedAt *time.Time
	if derived == ReportStatusFinished {
		now := time.Now().UTC()
		finishedAt = &now
	}
	updates["finished_at"] = finishedAt
	if err := db.Model(&Report{}).Where("id = ?", report.ID).Updates(updates).Error; err != nil {
		return false, err
	}
	report.Status = derived
	report.FinishedAt = finishedAt
	return true, nil
}
