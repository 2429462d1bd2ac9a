package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/veritas/internal/util"
)

// geminiFallbackModels are tried in order when the configured model is not found
var geminiFallbackModels = []string{"gemini-1.5-flash", "gemini-1.5-flash-8b", "gemini-pro"}

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiProvider{
		apiKey:  config.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   config.timeout(defaultTimeout),
			Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Chat calls generateContent. A 404 for the configured model walks the fallback model list.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	system, rest := splitSystem(req.Messages)

	apiReq := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: p.config.maxTokens(req),
		},
	}
	if req.JSON {
		apiReq.GenerationConfig.ResponseMimeType = "application/json"
	}
	if system != "" {
		apiReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		apiReq.Contents = append(apiReq.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	var lastErr error
	for _, model := range p.candidateModels(req) {
		resp, err := p.generate(ctx, model, apiReq)
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound {
				lastErr = err
				continue
			}
			return nil, err
		}

		var text strings.Builder
		if len(resp.Candidates) > 0 {
			for _, part := range resp.Candidates[0].Content.Parts {
				text.WriteString(part.Text)
			}
		}
		out := strings.TrimSpace(text.String())
		if out == "" {
			return nil, invalidResponse(p.Name(), errors.New("no candidates in response"))
		}

		return &ChatResponse{
			Text:       out,
			Provider:   p.Name(),
			Model:      model,
			TokensUsed: resp.UsageMetadata.TotalTokenCount,
		}, nil
	}
	return nil, lastErr
}

func (p *GeminiProvider) candidateModels(req ChatRequest) []string {
	primary := p.config.model(req, geminiFallbackModels[0])
	models := []string{primary}
	for _, m := range geminiFallbackModels {
		if m != primary {
			models = append(models, m)
		}
	}
	return models
}

func (p *GeminiProvider) generate(ctx context.Context, model string, apiReq geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, invalidResponse(p.Name(), fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, invalidResponse(p.Name(), fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr geminiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, statusError(p.Name(), httpResp.StatusCode, fmt.Errorf("%s: %s", apiErr.Error.Status, apiErr.Error.Message))
		}
		return nil, statusError(p.Name(), httpResp.StatusCode, errors.New(string(respBody)))
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, invalidResponse(p.Name(), fmt.Errorf("unmarshal response: %w", err))
	}
	return &resp, nil
}
