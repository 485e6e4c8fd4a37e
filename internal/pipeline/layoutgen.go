package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// GeminiLayoutGenerator asks Gemini to write a layout descriptor from a
// statement sample.
type GeminiLayoutGenerator struct {
	client *genai.Client
	model  string
}

var _ LayoutGenerator = (*GeminiLayoutGenerator)(nil)

// NewGeminiLayoutGenerator creates a generator. Credentials come from the
// environment (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiLayoutGenerator(ctx context.Context, model string) (*GeminiLayoutGenerator, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiLayoutGenerator: create genai client: %w", err)
	}
	return &GeminiLayoutGenerator{client: client, model: model}, nil
}

// GenerateLayout sends the sample to the model and decodes its descriptor.
// The result is not validated here.
func (g *GeminiLayoutGenerator) GenerateLayout(ctx context.Context, text string) (*layout.BankLayout, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildLayoutPrompt(text)}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GenerateLayout: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("GenerateLayout: empty response from model")
	}

	l, err := decodeLayout(raw)
	if err != nil {
		return nil, fmt.Errorf("GenerateLayout: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("layout", l.Name).Str("bank_id", l.BankID).Msg("Model proposed layout")
	return l, nil
}

func buildLayoutPrompt(text string) string {
	sample := []rune(text)
	if len(sample) > maxPromptSample {
		sample = sample[:maxPromptSample]
	}

	return "You are an expert in parsing Brazilian bank statements.\n" +
		"Analyze the text extracted from a PDF statement below and write a configuration\n" +
		"that parses statements of this bank in the future.\n\n" +
		"1. Identify the bank name.\n" +
		"2. Keywords: pick 2-3 strings that appear in this document and identify the bank\n" +
		"   (e.g. \"Banco do Brasil\", \"Extrato Mensal\", a CNPJ).\n" +
		"3. Transaction pattern: a regular expression in RE2 syntax capturing ONE transaction line.\n" +
		"   - Ignore headers, balances and summary lines.\n" +
		"   - Capturing groups are required for date, amount and memo.\n" +
		"   - Lookahead and backreferences are not supported.\n" +
		"4. Map the groups to columns: \"date\", \"memo\", \"amount\" and optionally \"type\" (D or C).\n\n" +
		"Text sample:\n---\n" + string(sample) + "\n---\n\n" +
		"Return STRICT JSON only (no comments, no markdown, no code fences) with this structure:\n" +
		"{\n" +
		"  \"name\": \"Bank Name - Type\",\n" +
		"  \"bank_id\": \"number or code\",\n" +
		"  \"keywords\": [\"keyword1\", \"keyword2\"],\n" +
		"  \"line_pattern\": \"^(\\\\d{2}/\\\\d{2}/\\\\d{4})\\\\s+(.+?)\\\\s+([\\\\d.]+,\\\\d{2})\",\n" +
		"  \"columns\": [\n" +
		"    {\"name\": \"date\", \"match_group\": 1},\n" +
		"    {\"name\": \"memo\", \"match_group\": 2},\n" +
		"    {\"name\": \"amount\", \"match_group\": 3}\n" +
		"  ],\n" +
		"  \"amount_decimal_separator\": \",\",\n" +
		"  \"amount_thousand_separator\": \".\",\n" +
		"  \"date_format\": \"%d/%m/%Y\"\n" +
		"}\n" +
		"match_group indices are 1-based. Output must begin with \"{\" and end with \"}\".\n"
}

// decodeLayout parses a model response into a BankLayout, naming it after
// the bank code when the model left the name out.
func decodeLayout(raw string) (*layout.BankLayout, error) {
	clean := cleanModelJSON(raw)
	var l layout.BankLayout
	if err := json.Unmarshal([]byte(clean), &l); err != nil {
		return nil, fmt.Errorf("decodeLayout: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if strings.TrimSpace(l.Name) == "" {
		code := l.BankID
		if code == "" {
			code = "Unknown"
		}
		l.Name = "New AI Layout " + code
	}
	return &l, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model wrapped it in prose.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
