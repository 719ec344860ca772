package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

const phrasePrompt = `List the key phrases of the following request. Return a JSON object with two fields:

- "noun_chunks": every base noun phrase, copied verbatim including any leading determiner (list of strings)
- "entities": every named entity, date, quantity or number span, copied verbatim (list of strings)

Rules:
- Copy spans exactly as they appear in the text; do not paraphrase or normalize
- Keep text order
- Return empty lists if there is nothing to report

Respond with ONLY the JSON object, no other text.`

// ClaudeExtractor asks the Anthropic Messages API for noun phrases and
// entities.
type ClaudeExtractor struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client

	// Stats records call latencies; nil disables recording.
	Stats *LatencyStats
}

func NewClaudeExtractor(apiKey, model string) *ClaudeExtractor {
	return &ClaudeExtractor{
		apiKey: apiKey,
		model:  model,
		url:    defaultAnthropicURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		Stats: NewLatencyStats(time.Hour),
	}
}

// WithURL points the extractor at a different Messages endpoint.
func (c *ClaudeExtractor) WithURL(url string) *ClaudeExtractor {
	c.url = url
	return c
}

// Model returns the configured model name.
func (c *ClaudeExtractor) Model() string {
	return c.model
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type phraseResponse struct {
	NounChunks []string `json:"noun_chunks"`
	Entities   []string `json:"entities"`
}

func (c *ClaudeExtractor) ExtractPhrases(ctx context.Context, text string) (Phrases, error) {
	if strings.TrimSpace(text) == "" {
		return Phrases{}, nil
	}
	defer c.Stats.Observe(time.Now())

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropicMessage{
			{Role: "user", Content: phrasePrompt + "\n\n---\n" + text},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Phrases{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Phrases{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Phrases{}, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Phrases{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Phrases{}, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Phrases{}, fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Phrases{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Phrases{}, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return Phrases{}, fmt.Errorf("empty response from claude")
	}

	raw := stripCodeBlock(apiResp.Content[0].Text)
	var pr phraseResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return Phrases{}, fmt.Errorf("parse phrases json: %w (raw: %s)", err, truncate(raw, 200))
	}

	return Phrases{
		NounChunks: groundedPhrases(pr.NounChunks, text),
		Entities:   groundedPhrases(pr.Entities, text),
	}, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// groundedPhrases keeps model output that is actually a span of the source
// text, so a model cannot invent keywords the request never mentioned.
func groundedPhrases(phrases []string, text string) []string {
	lowerText := strings.ToLower(text)
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" || len(p) > 200 {
			continue
		}
		if !strings.Contains(lowerText, strings.ToLower(p)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Close releases resources.
func (c *ClaudeExtractor) Close() {
	c.httpClient.CloseIdleConnections()
}
