package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 10 * time.Second

// publishEvent sends a review event after commit. Delivery is best effort: the review state is
// already durable, so failures are logged and not returned.
func (s *FiscalReviewService) publishEvent(ctx context.Context, event string, reportId int, reviewerId string, signatureCount int) {
	if s.events == nil {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.ReviewEventMessage{
		Event:          event,
		ReportId:       reportId,
		ReviewerId:     reviewerId,
		SignatureCount: signatureCount,
		OccurredAt:     time.Now().UTC(),
		CorrelationId:  cid,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	messageId, err := s.events.PublishReviewEvent(pubCtx, msg)
	if err != nil {
		config.LogError(s.logger, "reviewEvents.go", "publishEvent", "PublishReviewEvent", msg, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"field":          "publishEvent",
		"event":          event,
		"report_id":      reportId,
		"message_id":     messageId,
		"correlation_id": cid,
	}).Info("review event published")
}
