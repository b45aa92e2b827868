package service

import (
	"errors"
	"fmt"
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 << 20

// ErrInvalidImage is returned for uploads that are empty, too large or not an allowed image type.
var ErrInvalidImage = errors.New("invalid image")

// AllowedImageTypes lists the accepted image content types.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/svg+xml",
}

// IsAllowedImageType reports whether a declared content type is on the allow-list.
func IsAllowedImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, allowed := range AllowedImageTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// DetectImageType sniffs data and returns its content type when it is an
// allowed image.
func DetectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrInvalidImage)
	}
	if len(data) > MaxImageSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImage, MaxImageSize)
	}

	detected := mimetype.Detect(data)
	for _, allowed := range AllowedImageTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, detected.String())
}
