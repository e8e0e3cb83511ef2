package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrInvalidDataURI = errors.New("invalid data URI")

// EncodeDataURI renders data as data:<mime>;base64,<payload>.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI accepts either a base64 data URI or a bare base64 payload.
// When the URI carries no MIME type the content is sniffed.
func DecodeDataURI(uri string) (string, []byte, error) {
	uri = strings.TrimSpace(uri)
	payload := uri
	mimeType := ""

	if strings.HasPrefix(uri, "data:") {
		header, body, ok := strings.Cut(uri[len("data:"):], ",")
		if !ok {
			return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
		}
		params := strings.Split(header, ";")
		if params[len(params)-1] != "base64" {
			return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
		}
		mimeType = params[0]
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(stripSpace(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return mimeType, data, nil
}

// stripSpace drops ASCII whitespace so wrapped base64 still decodes.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			return -1
		}
		return r
	}, s)
}

// DetectMIME sniffs the content type of data, without parameters.
func DetectMIME(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// FitBox scales w×h to the largest size that fits inside maxW×maxH while
// keeping the aspect ratio.
func FitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := maxW / w
	if s := maxH / h; s < scale {
		scale = s
	}
	return w * scale, h * scale
}

type ImageProcessor struct {
	log *zap.Logger
}

func NewImageProcessor(log *zap.Logger) *ImageProcessor {
	return &ImageProcessor{log: log}
}

// Normalize returns image bytes and the matching PDF image type ("PNG",
// "JPG" or "GIF"). Formats the PDF writer cannot embed are re-encoded to PNG.
func (p *ImageProcessor) Normalize(data []byte) ([]byte, string, error) {
	detected := DetectMIME(data)
	switch detected {
	case "image/png":
		return data, "PNG", nil
	case "image/jpeg":
		return data, "JPG", nil
	case "image/gif":
		return data, "GIF", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s image: %w", detected, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}

	p.log.Debug("Image converted for report",
		zap.String("from", format),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), "PNG", nil
}
