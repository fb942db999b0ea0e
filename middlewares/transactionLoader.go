package middlewares

import (
	"context"
	"errors"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"gorm.io/gorm"
)

type transactionReader struct {
	db *gorm.DB
}

func (r *transactionReader) getTransactions(ctx context.Context, ids []int) []*dataloader.Result[*models.FiscalTransaction] {
	results, err := models.GetFiscalTransactions(ctx, r.db, ids)
	if err != nil {
		return handleError[*models.FiscalTransaction](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetTransactions(ctx context.Context, ids []int) ([]*models.FiscalTransaction, []error) {
	loaders := For(ctx)
	if loaders == nil {
		loaders = NewLoaders(config.GetDB())
	}
	return loaders.transactionLoader.LoadMany(ctx, ids)()
}

// TransactionSource serves statement entries to the review workflow through the request's loader.
type TransactionSource struct{}

func (TransactionSource) GetTransactions(ctx context.Context, ids []int) ([]*models.FiscalTransaction, error) {
	results, errs := GetTransactions(ctx, ids)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
