package ai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// ProviderOpenAI is the registry id of the OpenAI analyzer
const ProviderOpenAI = "openai"

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIAnalyzer calls the chat completions API.
// The API key arrives per call, so a client is built per request.
type OpenAIAnalyzer struct {
	baseURL     string
	timeout     time.Duration
	temperature float64
	log         *logger.Logger
}

// NewOpenAIAnalyzer creates an analyzer. An empty baseURL targets api.openai.com.
func NewOpenAIAnalyzer(baseURL string, timeout time.Duration) *OpenAIAnalyzer {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIAnalyzer{
		baseURL:     strings.TrimSpace(baseURL),
		timeout:     timeout,
		temperature: 0.2,
		log:         logger.Get().With("component", "openai_analyzer"),
	}
}

func (a *OpenAIAnalyzer) Name() string { return ProviderOpenAI }

// Analyze sends the prompt and returns the first choice text
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, prompt analysis.Prompt, model, apiKey string) (string, error) {
	if apiKey == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := openai.NewClient(opts...)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(a.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", a.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewProviderError(ProviderOpenAI, "analyze", errors.Wrap(errors.ErrMalformedResponse, "no choices returned"))
	}

	a.log.Debugw("Chat completion finished",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (a *OpenAIAnalyzer) classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderOpenAI, apiErr.StatusCode, err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewProviderError(ProviderOpenAI, "analyze", errors.Wrap(errors.ErrTimeout, err.Error()))
	}
	return errors.NewProviderError(ProviderOpenAI, "analyze", err)
}
