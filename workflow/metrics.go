package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "votes_total",
		Help:      "Review decisions recorded, by decision",
	}, []string{"decision"})
	diligenceAcksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "diligence_acks_total",
		Help:      "Diligence acknowledgments that changed state",
	})
	bulkApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "bulk_approved_total",
		Help:      "Transactions approved through bulk approval",
	})
	signaturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "signatures_total",
		Help:      "Report signatures recorded",
	})
	signRefusedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "sign_refused_total",
		Help:      "Refused signature attempts, by reason",
	}, []string{"reason"})
	reportsFinishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "reports_finished_total",
		Help:      "Reports that reached the signature quorum",
	})
	storageConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "storage_conflicts_total",
		Help:      "Deadlocks and lock wait timeouts seen by review mutations, by operation",
	}, []string{"operation"})
	statusCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fiscal_review",
		Name:      "report_status_corrections_total",
		Help:      "Cached report statuses corrected on read",
	})
)
