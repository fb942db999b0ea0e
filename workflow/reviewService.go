package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("fiscal-review")

// TransactionSource reads statement entries owned by the ingestion side.
type TransactionSource interface {
	GetTransactions(ctx context.Context, ids []int) ([]*models.FiscalTransaction, error)
}

// CustomOrderSource supplies the statement page order, transactionId -> sort index.
type CustomOrderSource interface {
	GetCustomOrder(ctx context.Context, reportId int) (map[int]int, error)
}

// EventPublisher sends review events to downstream consumers.
type EventPublisher interface {
	PublishReviewEvent(ctx context.Context, msg config.ReviewEventMessage) (string, error)
}

// MediaStore keeps normalized signature images.
type MediaStore interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	SignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error)
}

// FiscalReviewService runs the review, diligence and signature transitions of reports.
// Every mutation is one database transaction that starts by locking the report row.
type FiscalReviewService struct {
	db           *gorm.DB
	logger       *logrus.Logger
	transactions TransactionSource
	customOrder  CustomOrderSource
	events       EventPublisher
	media        MediaStore
	locker       *redislock.Client
	lockTTL      time.Duration
}

type Option func(*FiscalReviewService)

func WithTransactionSource(source TransactionSource) Option {
	return func(s *FiscalReviewService) { s.transactions = source }
}

func WithCustomOrderSource(source CustomOrderSource) Option {
	return func(s *FiscalReviewService) { s.customOrder = source }
}

// WithEventPublisher overrides the Pub/Sub publisher; nil disables events.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *FiscalReviewService) { s.events = publisher }
}

// WithMediaStore overrides the signature image store; nil disables uploads.
func WithMediaStore(store MediaStore) Option {
	return func(s *FiscalReviewService) { s.media = store }
}

// WithLocker overrides the redis lock client; nil relies on the row lock alone.
func WithLocker(locker *redislock.Client) Option {
	return func(s *FiscalReviewService) { s.locker = locker }
}

func NewFiscalReviewService(db *gorm.DB, logger *logrus.Logger, opts ...Option) *FiscalReviewService {
	s := &FiscalReviewService{
		db:           db,
		logger:       logger,
		transactions: dbTransactionSource{db: db},
		customOrder:  dbCustomOrderSource{db: db},
		locker:       config.GetRedisLock(),
		lockTTL:      reviewLockTTL,
	}
	if config.ReviewEventsTopic() != "" {
		s.events = pubSubPublisher{}
	}
	if config.StoreSignatureMedia() && utils.SignatureBucket() != "" {
		s.media = gcsMediaStore{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type dbTransactionSource struct {
	db *gorm.DB
}

func (d dbTransactionSource) GetTransactions(ctx context.Context, ids []int) ([]*models.FiscalTransaction, error) {
	return utils.FetchModelsByIds[models.FiscalTransaction](ctx, d.db, ids)
}

type dbCustomOrderSource struct {
	db *gorm.DB
}

func (d dbCustomOrderSource) GetCustomOrder(ctx context.Context, reportId int) (map[int]int, error) {
	return models.GetCustomOrder(ctx, d.db, reportId)
}

type pubSubPublisher struct{}

func (pubSubPublisher) PublishReviewEvent(ctx context.Context, msg config.ReviewEventMessage) (string, error) {
	return config.PublishReviewEvent(ctx, msg)
}

type gcsMediaStore struct{}

func (gcsMediaStore) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	return utils.UploadBytesToGCS(ctx, objectName, data, contentType)
}

func (gcsMediaStore) SignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	return utils.SignSignatureImageURL(ctx, objectName, expires)
}
