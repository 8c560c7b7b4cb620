package title

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// Config holds connection details for the Gemini API.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient resolves problem titles by asking a Gemini model.
type GeminiClient struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

func NewGeminiClient(cfg Config, logger zerolog.Logger) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	model := strings.TrimPrefix(cfg.Model, "models/")
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		logger:      logger.With().Str("component", "title_lookup").Logger(),
		generateURL: fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(model)),
	}
}

// LookupTitle returns the model's answer for the title of LeetCode problem number.
// The text is trimmed but otherwise not checked against any catalogue.
func (c *GeminiClient) LookupTitle(ctx context.Context, number int) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(number)}}}},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode gemini payload: %w", err)
	}

	for _, cand := range genResp.Candidates {
		for _, p := range cand.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				c.logger.Debug().Int("question_number", number).Str("title", text).Msg("title resolved")
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("gemini returned empty response")
}

func buildPrompt(number int) string {
	return fmt.Sprintf("What is the exact title of LeetCode problem number %d? Please respond with only the problem title, nothing else.", number)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
