package models

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReportTransactionPosition is the page order of a transaction in the original statement,
// written by the PDF extraction side.
type ReportTransactionPosition struct {
	ID            int `gorm:"primary_key" json:"id"`
	ReportId      int `gorm:"not null;uniqueIndex:idx_report_positions_tx,priority:1" json:"report_id"`
	TransactionId int `gorm:"not null;uniqueIndex:idx_report_positions_tx,priority:2" json:"transaction_id"`
	Position      int `gorm:"not null" json:"position"`
}

const customOrderCacheTTL = 24 * time.Hour

func customOrderCacheKey(reportId int) string {
	return fmt.Sprintf("ReportOrder:%d", reportId)
}

// GetCustomOrder returns transactionId -> sort index for the report, empty when the statement
// had no extractable order. Cached in redis when available.
func GetCustomOrder(ctx context.Context, db *gorm.DB, reportId int) (map[int]int, error) {
	// json object keys are strings
	var cached map[string]int
	exists, err := config.GetRedisObject(customOrderCacheKey(reportId), &cached)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":     "GetCustomOrder",
			"report_id": reportId,
		}).Warn("custom order cache read failed: " + err.Error())
	}
	if exists {
		order := make(map[int]int, len(cached))
		for k, v := range cached {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("corrupt custom order cache for report %d: %w", reportId, err)
			}
			order[id] = v
		}
		return order, nil
	}

	var positions []ReportTransactionPosition
	if err := db.WithContext(ctx).Where("report_id = ?", reportId).Find(&positions).Error; err != nil {
		return nil, err
	}
	order := make(map[int]int, len(positions))
	toCache := make(map[string]int, len(positions))
	for _, p := range positions {
		order[p.TransactionId] = p.Position
		toCache[strconv.Itoa(p.TransactionId)] = p.Position
	}
	if err := config.SetRedisObject(customOrderCacheKey(reportId), toCache, customOrderCacheTTL); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":     "GetCustomOrder",
			"report_id": reportId,
		}).Warn("custom order cache write failed: " + err.Error())
	}
	return order, nil
}

// InvalidateCustomOrder drops the cached order after the extraction side rewrites positions.
func InvalidateCustomOrder(reportId int) error {
	return config.RemoveRedisKey(customOrderCacheKey(reportId))
}
