package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/workflow"
)

func main() {
	reportID := flag.Int("report-id", 0, "Optional: reconcile only one report. If 0, reconciles every report.")
	dryRun := flag.Bool("dry-run", false, "Only report what would change")
	refreshOrder := flag.Bool("refresh-order", false, "Also drop the cached statement page order of each report")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config does not connect in init()).
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	defer config.CloseDatabase()

	// Ensure schema is up-to-date.
	models.MigrateTable()

	var ids []int
	query := db.WithContext(ctx).Model(&models.Report{}).Order("id ASC")
	if *reportID > 0 {
		query = query.Where("id = ?", *reportID)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list reports: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no reports found to reconcile")
		return
	}

	service := workflow.NewFiscalReviewService(db, config.GetLogger(), workflow.WithEventPublisher(nil))

	release, err := workflow.AcquireReconcileLock(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile aborted: %v\n", err)
		os.Exit(1)
	}
	defer release()

	failed := 0
	for _, id := range ids {
		result, err := service.ReconcileReport(ctx, id, *dryRun)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "report %d: %v\n", id, err)
			continue
		}
		fmt.Printf("report=%d cached=%s derived=%s records_rewritten=%d dry_run=%t\n",
			result.ReportId, result.Cached, result.Derived, result.RecordsRewritten, *dryRun)

		if *refreshOrder && !*dryRun {
			if err := models.InvalidateCustomOrder(id); err != nil {
				fmt.Fprintf(os.Stderr, "report %d: failed to drop cached order: %v\n", id, err)
			}
		}
	}
	if failed > 0 {
		release()
		fmt.Fprintf(os.Stderr, "%d report(s) failed\n", failed)
		os.Exit(1)
	}
}
