package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var reviewers = []string{"ana", "bruno", "carla"}

// openReviewDB opens a private in-memory sqlite database for the test.
func openReviewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:"+name+"?mode=memory&cache=shared")
	t.Setenv("REVIEW_EVENTS_TOPIC", "")
	t.Setenv("STORE_SIGNATURE_MEDIA", "")

	config.ConnectDatabaseWithRetry()
	t.Cleanup(func() { _ = config.CloseDatabase() })
	models.MigrateTable()
	return config.GetDB()
}

// seedReport creates a report with n transactions and returns their ids in entry order.
func seedReport(t *testing.T, db *gorm.DB, n int) (*models.Report, []int) {
	t.Helper()
	report := models.Report{Title: "Balancete 2024-03", Competency: "2024-03", AccountType: "checking", TotalEntries: n}
	if err := db.Create(&report).Error; err != nil {
		t.Fatalf("create report: %v", err)
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		tx := models.FiscalTransaction{
			ReportId:        report.ID,
			EntryIndex:      i,
			TransactionDate: day.AddDate(0, 0, i),
			Description:     "entry",
			Amount:          decimal.NewFromInt(int64(100 * (i + 1))),
		}
		if err := db.Create(&tx).Error; err != nil {
			t.Fatalf("create transaction: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	return &report, ids
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []config.ReviewEventMessage
}

func (p *recordingPublisher) PublishReviewEvent(ctx context.Context, msg config.ReviewEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return "msg-" + msg.Event, nil
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

type memoryMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryMediaStore) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[objectName] = data
	return nil
}

func (m *memoryMediaStore) SignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	return "memory://" + objectName, nil
}

func newService(db *gorm.DB, opts ...workflow.Option) *workflow.FiscalReviewService {
	base := []workflow.Option{
		workflow.WithLocker(nil),
		workflow.WithEventPublisher(nil),
		workflow.WithMediaStore(nil),
	}
	return workflow.NewFiscalReviewService(db, config.GetLogger(), append(base, opts...)...)
}

func mustApprove(t *testing.T, s *workflow.FiscalReviewService, reportId, txId int, reviewer string) *models.ReviewRecord {
	t.Helper()
	record, err := s.Approve(context.Background(), reportId, txId, reviewer, strings.ToUpper(reviewer))
	if err != nil {
		t.Fatalf("approve tx %d by %s: %v", txId, reviewer, err)
	}
	return record
}

func mustFlag(t *testing.T, s *workflow.FiscalReviewService, reportId, txId int, reviewer, observation string) *models.ReviewRecord {
	t.Helper()
	record, err := s.Flag(context.Background(), reportId, txId, reviewer, strings.ToUpper(reviewer), observation)
	if err != nil {
		t.Fatalf("flag tx %d by %s: %v", txId, reviewer, err)
	}
	return record
}

func mustAck(t *testing.T, s *workflow.FiscalReviewService, reportId, txId int, reviewer string) {
	t.Helper()
	if err := s.ConfirmDiligence(context.Background(), reportId, txId, reviewer); err != nil {
		t.Fatalf("ack tx %d by %s: %v", txId, reviewer, err)
	}
}

func mustSign(t *testing.T, s *workflow.FiscalReviewService, reportId int, reviewer string) *models.Signature {
	t.Helper()
	sig, err := s.Sign(context.Background(), workflow.NewSignature{
		ReportId:    reportId,
		ReviewerId:  reviewer,
		DisplayName: strings.ToUpper(reviewer),
		Payload:     "signed by " + reviewer,
	})
	if err != nil {
		t.Fatalf("sign by %s: %v", reviewer, err)
	}
	return sig
}

func progress(t *testing.T, s *workflow.FiscalReviewService, reportId int) *models.ReportProgress {
	t.Helper()
	p, err := s.GetReportProgress(context.Background(), reportId)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	return p
}

func reviewerProgress(t *testing.T, s *workflow.FiscalReviewService, reportId int, reviewer string) *models.ReviewerProgress {
	t.Helper()
	p, err := s.GetReviewerProgress(context.Background(), reportId, reviewer)
	if err != nil {
		t.Fatalf("reviewer progress: %v", err)
	}
	return p
}

func notEligibleReason(t *testing.T, err error) models.NotEligibleReason {
	t.Helper()
	var ne *models.NotEligibleError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotEligibleError, got %v", err)
	}
	return ne.Reason
}

func isValidation(err error) bool {
	var ve *models.ValidationError
	return errors.As(err, &ve)
}

func isInvalidState(err error) bool {
	var se *models.InvalidStateError
	return errors.As(err, &se)
}
