package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/docflow/pkg/logger"
)

// Processor runs Tesseract OCR over image uploads after a light
// preprocessing pass.
type Processor struct {
	languages []string
	log       logger.Logger
}

func NewProcessor(languages []string, log logger.Logger) *Processor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Processor{languages: languages, log: log}
}

func (p *Processor) CanProcess(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff":
		return true
	}
	return false
}

func (p *Processor) Extract(ctx context.Context, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	// Grayscale improves tesseract accuracy on scans; failures fall
	// back to the raw bytes.
	if processed, err := p.preprocess(data); err == nil {
		data = processed
	} else {
		p.log.Warn("Image preprocessing failed, using raw image",
			logger.Error(err),
		)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return "", fmt.Errorf("failed to set OCR languages: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to load image for OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

func (p *Processor) preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := imaging.Grayscale(img)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, gray); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Processor) Close() error {
	return nil
}
