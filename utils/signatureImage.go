package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	maxSignatureImageBytes = 2 << 20
	signatureImageWidth    = 600
)

var ErrNotSignatureImage = errors.New("signature payload is not an image data url")

// IsImageDataURL reports whether the payload is a base64 "data:image/...;base64," url
// as sent by the drawing pad.
func IsImageDataURL(payload string) bool {
	return strings.HasPrefix(payload, "data:image/") && strings.Contains(payload, ";base64,")
}

// NormalizeSignatureImage decodes a drawn signature and re-encodes it as a PNG no wider than
// signatureImageWidth, flattened on white.
func NormalizeSignatureImage(payload string) ([]byte, error) {
	if !IsImageDataURL(payload) {
		return nil, ErrNotSignatureImage
	}
	encoded := payload[strings.Index(payload, ";base64,")+len(";base64,"):]
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxSignatureImageBytes {
		return nil, errors.New("signature image exceeds 2MB limit")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > signatureImageWidth {
		img = imaging.Resize(img, signatureImageWidth, 0, imaging.Lanczos)
	}
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), image.White)
	flattened := imaging.Overlay(background, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flattened, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
