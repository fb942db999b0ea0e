package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FiscalTransaction is an immutable statement entry written by the ingestion side.
// The review workflow only reads it.
type FiscalTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ReportId        int             `gorm:"index;not null" json:"report_id"`
	EntryIndex      int             `gorm:"not null;default:0" json:"entry_index"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `gorm:"size:500" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (FiscalTransaction) TableName() string {
	return "fiscal_transactions"
}

// ReviewEntry is the part of a transaction the workflow needs to evaluate progress.
type ReviewEntry struct {
	TransactionId int `gorm:"column:id"`
	EntryIndex    int `gorm:"column:entry_index"`
}

func ListReviewEntries(tx *gorm.DB, reportId int) ([]ReviewEntry, error) {
	var entries []ReviewEntry
	err := tx.Model(&FiscalTransaction{}).
		Select("id", "entry_index").
		Where("report_id = ?", reportId).
		Order("entry_index ASC, id ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func GetFiscalTransactions(ctx context.Context, db *gorm.DB, ids []int) ([]FiscalTransaction, error) {
	var results []FiscalTransaction
	if len(ids) == 0 {
		return results, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
