package ai

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// ProviderGemini is the registry id of the Gemini analyzer
const ProviderGemini = "gemini"

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAnalyzer calls GenerateContent on the Gemini API
type GeminiAnalyzer struct {
	baseURL     string
	timeout     time.Duration
	temperature float32
	log         *logger.Logger
}

// NewGeminiAnalyzer creates an analyzer. baseURL overrides the API endpoint and is
// normally empty.
func NewGeminiAnalyzer(baseURL string, timeout time.Duration) *GeminiAnalyzer {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GeminiAnalyzer{
		baseURL:     strings.TrimSpace(baseURL),
		timeout:     timeout,
		temperature: 0.2,
		log:         logger.Get().With("component", "gemini_analyzer"),
	}
}

func (a *GeminiAnalyzer) Name() string { return ProviderGemini }

// Analyze sends the prompt and concatenates the text parts of the first candidate that has any
func (a *GeminiAnalyzer) Analyze(ctx context.Context, prompt analysis.Prompt, model, apiKey string) (string, error) {
	if apiKey == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if a.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: a.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", errors.NewProviderError(ProviderGemini, "client", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(a.temperature),
		ResponseMIMEType: "application/json",
	}
	if prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt.User, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", a.classify(ctx, err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return "", errors.NewProviderError(ProviderGemini, "analyze", errors.Wrap(errors.ErrMalformedResponse, "no text in response"))
	}

	if resp.UsageMetadata != nil {
		a.log.Debugw("Generation finished",
			"model", model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	return text.String(), nil
}

func (a *GeminiAnalyzer) classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderGemini, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyStatus(ProviderGemini, apiErrPtr.Code, err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewProviderError(ProviderGemini, "analyze", errors.Wrap(errors.ErrTimeout, err.Error()))
	}
	return errors.NewProviderError(ProviderGemini, "analyze", err)
}
