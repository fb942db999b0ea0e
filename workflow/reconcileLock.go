package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/fiscal_review/config"
	"gorm.io/gorm"
)

const reconcileLockName = "fiscal-review:reconcile"

// AcquireReconcileLock keeps two reconcile jobs from running at once, using a MySQL advisory lock.
// NOTE: GET_LOCK is connection-scoped, so a dedicated connection is held until release is called.
// On sqlite it is a no-op.
func AcquireReconcileLock(ctx context.Context, db *gorm.DB) (release func(), err error) {
	if config.GetDBDriver() != config.DriverMySQL {
		return func() {}, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var ok int
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", reconcileLockName).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ok != 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("another reconcile job holds %s", reconcileLockName)
	}
	return func() {
		var _ok int
		_ = conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT RELEASE_LOCK(?)", reconcileLockName).Scan(&_ok)
		_ = conn.Close()
	}, nil
}
