package workflow

import (
	"errors"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/fiscal_review/models"
	"gorm.io/gorm"
)

const (
	mysqlErrDuplicateKey    = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateKey
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite (local runs and tests)
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isLockConflictErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// classifyStorageError wraps lock conflicts in models.ConflictError and passes everything else through.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	if isLockConflictErr(err) {
		return &models.ConflictError{Err: err}
	}
	return err
}
