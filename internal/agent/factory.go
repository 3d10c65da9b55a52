package agent

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/feichai0017/docflow/config"
	imageproc "github.com/feichai0017/docflow/internal/agent/image"
	pdfproc "github.com/feichai0017/docflow/internal/agent/pdf"
	"github.com/feichai0017/docflow/pkg/logger"
)

var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
}

// Processor extracts text from one class of file.
type Processor interface {
	CanProcess(mimeType string) bool
	Extract(ctx context.Context, reader io.Reader) (string, error)
	Close() error
}

// ProcessorFactory implements FileProcessor by dispatching on the file
// extension.
type ProcessorFactory struct {
	processors map[string]Processor
	log        logger.Logger
}

// NewProcessorFactory wires up the OCR engine named in configuration
// plus the PDF text extractor.
func NewProcessorFactory(ctx context.Context, cfg config.OCRConfig, log logger.Logger) (*ProcessorFactory, error) {
	factory := &ProcessorFactory{
		processors: make(map[string]Processor),
		log:        log,
	}

	factory.processors["application/pdf"] = pdfproc.NewProcessor(log)

	var imgProcessor Processor
	switch cfg.Engine {
	case "", "tesseract":
		imgProcessor = imageproc.NewProcessor(cfg.Languages, log)
	case "textract":
		p, err := imageproc.NewTextractProcessor(ctx, imageproc.TextractConfig{
			Region:        cfg.Textract.Region,
			AccessKey:     cfg.Textract.AccessKey,
			SecretKey:     cfg.Textract.SecretKey,
			MinConfidence: cfg.Textract.MinConfidence,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract processor: %w", err)
		}
		imgProcessor = p
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}

	for _, mime := range []string{"image/jpeg", "image/png", "image/tiff"} {
		factory.processors[mime] = imgProcessor
	}

	return factory, nil
}

// ProcessFile extracts normalized text from the upload.
func (f *ProcessorFactory) ProcessFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType, ok := extToMIME[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	processor, ok := f.processors[mimeType]
	if !ok {
		return "", fmt.Errorf("no processor found for mime type: %s", mimeType)
	}

	f.log.Debug("Processing file",
		logger.String("filename", filename),
		logger.String("mimeType", mimeType),
	)
	return processor.Extract(ctx, reader)
}

// Close releases every registered processor once.
func (f *ProcessorFactory) Close() error {
	seen := make(map[Processor]bool)
	for _, p := range f.processors {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := p.Close(); err != nil {
			return err
		}
	}
	return nil
}
