package models

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// Signature is a reviewer's permanent sign-off on a report. There is no revoke.
type Signature struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ReportId      int       `gorm:"not null;uniqueIndex:idx_report_signatures_reviewer,priority:1" json:"report_id"`
	ReviewerId    string    `gorm:"size:64;not null;uniqueIndex:idx_report_signatures_reviewer,priority:2" json:"reviewer_id"`
	DisplayName   string    `gorm:"size:100;not null" json:"display_name"`
	Payload       string    `gorm:"type:longtext;not null" json:"-"`
	PayloadDigest string    `gorm:"size:64;not null" json:"payload_digest"`
	MediaObject   *string   `gorm:"size:255" json:"media_object"`
	SignedAt      time.Time `json:"signed_at"`
}

func (Signature) TableName() string {
	return "report_signatures"
}

// DigestSignaturePayload fingerprints the payload as submitted, before any normalization.
func DigestSignaturePayload(payload string) string {
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func CreateSignature(tx *gorm.DB, signature *Signature) error {
	if signature.SignedAt.IsZero() {
		signature.SignedAt = time.Now().UTC()
	}
	return tx.Create(signature).Error
}

func ListSignatures(tx *gorm.DB, reportId int) ([]Signature, error) {
	var signatures []Signature
	if err := tx.Where("report_id = ?", reportId).Order("signed_at ASC, id ASC").Find(&signatures).Error; err != nil {
		return nil, err
	}
	return signatures, nil
}

func SetSignatureMedia(db *gorm.DB, signatureId int, objectName string) error {
	return db.Model(&Signature{}).Where("id = ?", signatureId).Update("media_object", objectName).Error
}
