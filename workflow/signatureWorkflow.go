package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type NewSignature struct {
	ReportId    int    `json:"report_id" validate:"gt=0"`
	ReviewerId  string `json:"reviewer_id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Payload     string `json:"payload"`
}

const signatureImageURLTTL = 15 * time.Minute

// SignatureView is a recorded signature with a short-lived link to its stored image.
type SignatureView struct {
	models.Signature
	ImageURL *string `json:"image_url"`
}

// Sign records the reviewer's signature. Eligibility is evaluated and the signature inserted in
// the same transaction, under the report lock.
func (s *FiscalReviewService) Sign(ctx context.Context, input NewSignature) (signature *models.Signature, err error) {
	ctx, span := tracer.Start(ctx, "FiscalReview.Sign", trace.WithAttributes(
		attribute.Int("report_id", input.ReportId),
	))
	defer func() { endSpan(span, err) }()

	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := validateReviewerId(input.ReviewerId); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, &models.ValidationError{Field: "displayName", Message: "display name is required"}
	}
	if strings.TrimSpace(input.Payload) == "" {
		return nil, &models.ValidationError{Field: "payload", Message: "signature is required"}
	}
	var image []byte
	if utils.IsImageDataURL(input.Payload) {
		image, err = utils.NormalizeSignatureImage(input.Payload)
		if err != nil {
			return nil, &models.ValidationError{Field: "payload", Message: "unreadable signature image: " + err.Error()}
		}
	}

	var (
		finished       bool
		signatureCount int
	)
	err = s.mutateReport(ctx, "Sign", input.ReportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		if blocker := snapshot.SignBlocker(input.ReviewerId); blocker != nil {
			return blocker
		}
		if snapshot.Seat(input.ReviewerId) == nil {
			if _, err := models.ClaimReviewerSeat(tx, input.ReportId, input.ReviewerId, displayName); err != nil {
				return err
			}
		}

		sig := models.Signature{
			ReportId:      input.ReportId,
			ReviewerId:    input.ReviewerId,
			DisplayName:   displayName,
			Payload:       input.Payload,
			PayloadDigest: models.DigestSignaturePayload(input.Payload),
		}
		if err := models.CreateSignature(tx, &sig); err != nil {
			if isDuplicateKeyErr(err) {
				return &models.NotEligibleError{Reason: models.NotEligibleAlreadySigned}
			}
			return err
		}
		signature = &sig

		snapshot.Signatures = append(snapshot.Signatures, sig)
		signatureCount = len(snapshot.Signatures)
		derived := snapshot.DerivedStatus()
		report := snapshot.Report
		if _, err := models.SyncReportStatus(tx, &report, derived); err != nil {
			return err
		}
		finished = derived == models.ReportStatusFinished
		return nil
	})
	if err != nil {
		var blocker *models.NotEligibleError
		if errors.As(err, &blocker) {
			signRefusedTotal.WithLabelValues(string(blocker.Reason)).Inc()
		}
		config.LogError(s.logger, "signatureWorkflow.go", "Sign", "mutateReport",
			map[string]interface{}{"report_id": input.ReportId, "reviewer_id": input.ReviewerId}, err)
		return nil, err
	}
	signaturesTotal.Inc()

	if image != nil {
		s.storeSignatureImage(ctx, signature, image)
	}
	s.publishEvent(ctx, models.ReviewEventSigned, input.ReportId, input.ReviewerId, signatureCount)
	if finished {
		reportsFinishedTotal.Inc()
		s.publishEvent(ctx, models.ReviewEventReportFinished, input.ReportId, input.ReviewerId, signatureCount)
	}
	return signature, nil
}

// storeSignatureImage uploads the normalized image after commit. The signature itself is already
// recorded, so a failed upload only leaves media_object empty.
func (s *FiscalReviewService) storeSignatureImage(ctx context.Context, signature *models.Signature, image []byte) {
	if s.media == nil {
		return
	}
	objectName := fmt.Sprintf("signatures/report-%d/%s.png", signature.ReportId, utils.GenerateUniqueFilename())
	if err := s.media.UploadBytes(ctx, objectName, image, "image/png"); err != nil {
		config.LogError(s.logger, "signatureWorkflow.go", "storeSignatureImage", "UploadBytes", objectName, err)
		return
	}
	if err := models.SetSignatureMedia(s.db.WithContext(ctx), signature.ID, objectName); err != nil {
		config.LogError(s.logger, "signatureWorkflow.go", "storeSignatureImage", "SetSignatureMedia", objectName, err)
		return
	}
	signature.MediaObject = &objectName
	s.logger.WithFields(logrus.Fields{
		"field":        "storeSignatureImage",
		"report_id":    signature.ReportId,
		"signature_id": signature.ID,
	}).Debug("signature image stored")
}

// ListSignatures returns the report's signatures in signing order. Image links are best effort.
func (s *FiscalReviewService) ListSignatures(ctx context.Context, reportId int) ([]SignatureView, error) {
	var signatures []models.Signature
	err := s.readReport(ctx, reportId, func(tx *gorm.DB, snapshot *models.ReportSnapshot) error {
		signatures = snapshot.Signatures
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "signatureWorkflow.go", "ListSignatures", "readReport", reportId, err)
		return nil, err
	}

	views := make([]SignatureView, 0, len(signatures))
	for _, sig := range signatures {
		view := SignatureView{Signature: sig}
		if sig.MediaObject != nil && s.media != nil {
			url, err := s.media.SignedURL(ctx, *sig.MediaObject, signatureImageURLTTL)
			if err != nil {
				config.LogError(s.logger, "signatureWorkflow.go", "ListSignatures", "SignedURL", *sig.MediaObject, err)
			} else {
				view.ImageURL = &url
			}
		}
		views = append(views, view)
	}
	return views, nil
}
