// Package extract turns statement PDFs into the statement JSON document the pipeline reads,
// using a Gemini model as the external document parser.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"bai2-engine/pkg/logger"
)

const DefaultModel = "gemini-2.5-flash"

// ErrExtractionFailed marks upstream parse failures: no response, or a response that is not a
// statement document.
var ErrExtractionFailed = errors.New("statement extraction failed")

// Extractor produces statement JSON from a PDF.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte, filename string) ([]byte, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor sends the PDF inline with extraction instructions.
type GeminiExtractor struct {
	models contentGenerator
	model  string
}

// NewGeminiExtractor creates a client. An empty apiKey falls back to the environment
// (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiExtractor(client.Models, model), nil
}

func newGeminiExtractor(models contentGenerator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExtractor{models: models, model: model}
}

func (e *GeminiExtractor) Extract(ctx context.Context, pdf []byte, filename string) ([]byte, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrExtractionFailed)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: statementPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrExtractionFailed, err)
	}

	rawText := resp.Text()
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: empty response from model", ErrExtractionFailed)
	}

	clean := cleanModelJSON(rawText)
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		logger.GetLogger().WithError(err).WithField("file", filename).Warn("Model returned non-JSON output")
		return nil, fmt.Errorf("%w: unmarshal model output: %v", ErrExtractionFailed, err)
	}
	if _, ok := doc["source_filename"]; !ok && filename != "" {
		name, _ := json.Marshal(filename)
		doc["source_filename"] = name
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return out, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

const statementPrompt = "You are a parser for US commercial bank statements.\n\n" +
	"Task:\n" +
	"- Read the attached statement and return ONE JSON object describing it.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no Markdown).\n\n" +
	"Fields:\n" +
	"- \"account_number\": string, digits exactly as printed, null if masked or absent\n" +
	"- \"routing_number\": string of nine digits or null\n" +
	"- \"bank_name\": string\n" +
	"- \"opening_balance\": {\"amount\": number, \"date\": \"YYYY-MM-DD\"} or null\n" +
	"- \"closing_balance\": {\"amount\": number, \"date\": \"YYYY-MM-DD\"} or null\n" +
	"- \"statement_period\": {\"start_date\": \"YYYY-MM-DD\", \"end_date\": \"YYYY-MM-DD\"} or null\n" +
	"- \"opening_available\", \"closing_available\", \"one_day_float\", \"two_day_float\": number or null\n" +
	"- \"transactions\": array of objects with \"date\" (\"YYYY-MM-DD\"), \"amount\" (number, positive for\n" +
	"  money IN, negative for money OUT), \"description\", \"reference_number\", \"bank_reference\" and\n" +
	"  \"type_hint\" (one of deposit, withdrawal, fee, check, ach_debit, ach_credit, return, interest, other)\n\n" +
	"Rules:\n" +
	"- Never report a deposit total or a subtotal as a transaction or as the opening balance.\n" +
	"- If the statement has separate debit and credit columns, convert to one signed amount.\n" +
	"- Use null for anything that cannot be read.\n"
