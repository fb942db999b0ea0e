package config

import (
	"os"
	"strings"
)

// RequireReviewerSession rejects review routes that arrive without a session token or
// bearer token. Disable only for local development behind a trusted proxy that sets
// the x-reviewer-id header.
//
// Set via env:
// - REQUIRE_REVIEWER_SESSION=false
func RequireReviewerSession() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_REVIEWER_SESSION")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// StoreSignatureMedia enables uploading normalized signature images to SIGNATURE_BUCKET.
//
// Set via env:
// - STORE_SIGNATURE_MEDIA=true
func StoreSignatureMedia() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_SIGNATURE_MEDIA")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
