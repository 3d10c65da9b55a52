package image

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/docflow/pkg/logger"
)

// TextractConfig configures the AWS Textract OCR engine.
type TextractConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

// TextractProcessor is the hosted alternative to local Tesseract,
// selected by configuration.
type TextractProcessor struct {
	client *textract.Client
	cfg    TextractConfig
	log    logger.Logger
}

func NewTextractProcessor(ctx context.Context, cfg TextractConfig, log logger.Logger) (*TextractProcessor, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &TextractProcessor{
		client: textract.NewFromConfig(awsCfg),
		cfg:    cfg,
		log:    log,
	}, nil
}

func (p *TextractProcessor) CanProcess(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff", "application/pdf":
		return true
	}
	return false
}

func (p *TextractProcessor) Extract(ctx context.Context, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	result, err := p.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		return "", fmt.Errorf("textract failed: %w", err)
	}

	var lines []string
	for _, block := range result.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < p.cfg.MinConfidence {
			continue
		}
		lines = append(lines, *block.Text)
	}

	p.log.Debug("Textract detected text",
		logger.Int("lines", len(lines)),
	)
	return strings.Join(lines, "\n"), nil
}

func (p *TextractProcessor) Close() error {
	return nil
}
