// Package llm talks to an Ollama-compatible generate endpoint for the
// language-model collaborators: entity extraction, classification and
// email-body summarization.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feichai0017/docflow/internal/agent"
	"github.com/feichai0017/docflow/pkg/logger"
)

const extractEntitiesPrompt = `You are an expert in extracting structured entities from document content.
Extract the following entities from the given text:
Dates: all relevant dates mentioned.
Parties: names of individuals, companies, or organizations.
Amounts: all monetary values with currency symbols.
Other Entities: any additional relevant information (invoice no, VAT no, IBAN, BIC, etc.)
Return the output strictly as a valid JSON object with keys "Dates", "Parties", "Amounts", "Other Entities".
Do not include any text before or after the JSON.`

const classifyPrompt = `You are an expert document classifier.
Given the text and extracted entities of a document, determine:
category: the category of the content (e.g., contract, invoice, letter).
confidence_score: the confidence of the classification (0-100).
Return the output strictly as a valid JSON object with keys "category" and "confidence_score".
Do not include any text before or after the JSON.`

const summarizePrompt = `Summarize the following email body in a few sentences, keeping every date, name and amount.`

// Config defines the LLM endpoint.
type Config struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type generateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Client implements agent.EntityExtractor, agent.Classifier and
// agent.Summarizer over a single HTTP endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

func (c *Client) ExtractEntities(ctx context.Context, text string) (json.RawMessage, error) {
	raw, err := c.generate(ctx, extractEntitiesPrompt, text)
	if err != nil {
		return nil, err
	}

	cleaned := stripFences(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("entity extraction returned invalid JSON")
	}
	return json.RawMessage(cleaned), nil
}

func (c *Client) Classify(ctx context.Context, text string, entities json.RawMessage) (agent.Classification, error) {
	input := "Text: " + text
	if len(entities) > 0 {
		input += "\nEntities: " + string(entities)
	}

	raw, err := c.generate(ctx, classifyPrompt, input)
	if err != nil {
		return agent.Classification{}, err
	}

	var result agent.Classification
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return agent.Classification{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if result.Category == "" {
		return agent.Classification{}, fmt.Errorf("classification returned empty category")
	}
	return result, nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	raw, err := c.generate(ctx, summarizePrompt, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) generate(ctx context.Context, system, user string) (string, error) {
	reqBody := map[string]interface{}{
		"model":  c.cfg.Model,
		"system": system,
		"prompt": user,
		"stream": false,
		"options": map[string]interface{}{
			"num_predict": c.cfg.MaxTokens,
			"temperature": c.cfg.Temperature,
		},
	}

	reqData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("llm error: %s", result.Error)
	}

	return result.Response, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// its JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
