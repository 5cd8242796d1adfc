package services

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/models"
)

const (
	msgNoImage       = "Invalid input: no image provided. Send the photo as a data URI such as data:image/jpeg;base64,..."
	msgInvalidFormat = "Invalid input: invalid image format. Supported formats are JPEG, PNG and WebP sent as base64 data URIs (data:image/<type>;base64,...)."
)

// dataURIHeader matches the prefix of a supported image data URI. The payload
// is everything after the match.
var dataURIHeader = regexp.MustCompile(`^data:image/(jpeg|jpg|png|webp);base64,`)

// ImageCodec validates data URI images and enforces the size ceiling
type ImageCodec struct {
	maxSizeMB float64
}

// NewImageCodec creates a codec with the given size ceiling in megabytes
func NewImageCodec(maxSizeMB float64) *ImageCodec {
	return &ImageCodec{maxSizeMB: maxSizeMB}
}

// Decode parses a data URI into a DecodedImage. Every failure is a
// *models.Failure of kind InvalidInput or TooLarge.
func (c *ImageCodec) Decode(image string) (*models.DecodedImage, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, models.NewFailure(models.FailureInvalidInput, msgNoImage)
	}

	loc := dataURIHeader.FindStringSubmatchIndex(image)
	if loc == nil {
		return nil, models.NewFailure(models.FailureInvalidInput, msgInvalidFormat)
	}
	subtype := image[loc[2]:loc[3]]
	payload := image[loc[1]:]
	if payload == "" {
		return nil, models.NewFailure(models.FailureInvalidInput, msgInvalidFormat)
	}

	// Standard 4:3 base64 expansion; padding is ignored for this bound
	sizeBytes := len(payload) * 3 / 4
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	if sizeMB > c.maxSizeMB {
		return nil, models.NewFailure(models.FailureTooLarge,
			fmt.Sprintf("Image too large (%.1fMB). Maximum allowed size is %gMB.", sizeMB, c.maxSizeMB))
	}

	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return nil, models.NewFailure(models.FailureInvalidInput, msgInvalidFormat)
	}

	return &models.DecodedImage{
		MimeType:  mimeTypeForSubtype(subtype),
		Data:      data,
		SizeBytes: sizeBytes,
	}, nil
}

func mimeTypeForSubtype(subtype string) string {
	if subtype == "jpg" {
		return "image/jpeg"
	}
	return "image/" + subtype
}
