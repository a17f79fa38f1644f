package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pharmadoc/internal/logging"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults. Extraction favors a low
// temperature: the consensus layer wants stable output, not creativity.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.0-flash",
		Timeout:         5 * time.Minute,
		Temperature:     0.1,
		MaxOutputTokens: 8192,
	}
}

// GeminiClient implements Client against the Google Gemini API.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	temperature     float64
	maxOutputTokens int
	httpClient      *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a client with default configuration.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a client with custom configuration.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 8192
	}
	return &GeminiClient{
		apiKey:          config.APIKey,
		baseURL:         config.BaseURL,
		model:           model,
		temperature:     config.Temperature,
		maxOutputTokens: maxOutputTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate implements Client. One HTTP call per invocation; a 429 surfaces as
// *RateLimitError so the extraction layer can apply its own backoff schedule.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	// Auto-apply timeout if context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.OracleDebug("[Gemini] Generate: model=%s instruction_len=%d document_len=%d images=%d",
		c.model, len(req.Instruction), len(req.Document), len(req.Images))

	if c.apiKey == "" {
		logging.OracleError("[Gemini] Generate: API key not configured")
		return "", fmt.Errorf("API key not configured")
	}

	// Rate limiting: keep at least 100ms between calls.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	parts := []geminiPart{{Text: req.Instruction}}
	if req.Document != "" {
		parts = append(parts, geminiPart{Text: req.Document})
	}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: img.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if req.JSONOutput {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.OracleError("[Gemini] Generate: request failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		logging.Oracle("[Gemini] Generate: rate limited after %v", time.Since(startTime))
		return "", &RateLimitError{Detail: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		logging.OracleError("[Gemini] Generate: API returned status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}
	response := strings.TrimSpace(result.String())

	logging.Oracle("[Gemini] Generate: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}

// Wire types for the Gemini generateContent endpoint.

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
