package utils

import (
	"context"

	"gorm.io/gorm"
)

/* DB fetching */

// fetch models by ids, in no particular order; missing ids are simply absent
func FetchModelsByIds[T any](ctx context.Context, db *gorm.DB, ids []int) ([]*T, error) {
	var results []*T
	if len(ids) == 0 {
		return results, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
