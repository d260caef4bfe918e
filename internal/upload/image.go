package upload

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

const (
	thumbnailSize    = 300
	thumbnailQuality = 80
)

// probeDimensions decodes just the image header. Non-images and undecodable
// payloads simply report no dimensions.
func probeDimensions(data []byte, contentType string) (width, height *int) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	return &cfg.Width, &cfg.Height
}

// renderThumbnail produces a JPEG preview bounded to 300px on the long
// edge.
func renderThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailName derives the stored name of a file's preview.
func thumbnailName(filename string) string {
	ext := path.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "_thumb.jpg"
}
