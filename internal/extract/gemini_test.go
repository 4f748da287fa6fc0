package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text  string
	err   error
	model string
	parts int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if len(contents) > 0 {
		f.parts = len(contents[0].Parts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiExtractor_Extract(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"routing_number\": \"083000564\", \"transactions\": []}\n```"}
	e := newGeminiExtractor(gen, "")

	out, err := e.Extract(context.Background(), []byte("%PDF-1.7"), "march.pdf")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "083000564", doc["routing_number"])
	assert.Equal(t, "march.pdf", doc["source_filename"])
	assert.Equal(t, DefaultModel, gen.model)
	assert.Equal(t, 2, gen.parts)
}

func TestGeminiExtractor_Failures(t *testing.T) {
	tests := map[string]*fakeGenerator{
		"api error":   {err: errors.New("quota exceeded")},
		"empty reply": {text: "   "},
		"not json":    {text: "I could not read this statement."},
		"array":       {text: "[1, 2]"},
	}
	for name, gen := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newGeminiExtractor(gen, "gemini-test").Extract(context.Background(), []byte("%PDF"), "x.pdf")
			assert.ErrorIs(t, err, ErrExtractionFailed)
		})
	}

	_, err := newGeminiExtractor(&fakeGenerator{}, "").Extract(context.Background(), nil, "x.pdf")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON("Here you go: {\"a\":1} thanks"))
	assert.Equal(t, `{"a":{"b":2}}`, cleanModelJSON(`{"a":{"b":2}}`))
}
