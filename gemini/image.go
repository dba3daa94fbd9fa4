package gemini

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/raushankrgupta/product-descriptions-ai/models"
)

// Largest image edge sent to the model
const maxImageEdge = 1024

// preparedImage is an inline image ready for the model
type preparedImage struct {
	MIMEType string
	Data     []byte
}

// prepareImage decodes the base64 payload and shrinks it to fit maxImageEdge.
// Formats imaging cannot decode are sent as they came.
func prepareImage(data, mimeType string) (*preparedImage, error) {
	raw, err := base64.StdEncoding.DecodeString(stripDataURL(data))
	if err != nil {
		return nil, models.ValidationError{Message: "Image data is not valid base64."}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || (cfg.Width <= maxImageEdge && cfg.Height <= maxImageEdge) {
		return &preparedImage{MIMEType: mimeType, Data: raw}, nil
	}

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	resized := imaging.Fit(src, maxImageEdge, maxImageEdge, imaging.Lanczos)

	format, outMIME := imaging.JPEG, "image/jpeg"
	if strings.EqualFold(mimeType, "image/png") {
		format, outMIME = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &preparedImage{MIMEType: outMIME, Data: buf.Bytes()}, nil
}

// stripDataURL drops a "data:image/png;base64," prefix when the browser sent one
func stripDataURL(data string) string {
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			return data[i+1:]
		}
	}
	return data
}
