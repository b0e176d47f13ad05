package reasoner

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/claimwarden/claimwarden/internal/model"
)

// OpenAIReasoner implements Reasoner using the OpenAI chat completions API
type OpenAIReasoner struct {
	client *openai.Client
	config model.LLMConfig
}

// NewOpenAIReasoner creates a reasoner from LLM configuration
func NewOpenAIReasoner(config model.LLMConfig) (*OpenAIReasoner, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIReasoner{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// GenerateQueries asks the model for 3-5 policy search queries
func (r *OpenAIReasoner) GenerateQueries(ctx context.Context, claim model.ClaimRequest) (model.PolicyQuerySet, error) {
	raw, err := r.complete(ctx, "You generate search queries for insurance policy documents. Respond with JSON only.", queryPrompt(claim))
	if err != nil {
		return model.PolicyQuerySet{}, err
	}
	return DecodeQuerySet(raw)
}

// Recommend asks the model for a coverage recommendation
func (r *OpenAIReasoner) Recommend(ctx context.Context, req RecommendRequest) (model.Recommendation, error) {
	raw, err := r.complete(ctx, "You are an insurance claims adjuster. Respond with JSON only.", recommendPrompt(req))
	if err != nil {
		return model.Recommendation{}, err
	}
	return DecodeRecommendation(raw)
}

// complete runs one chat completion bounded by the configured timeout
func (r *OpenAIReasoner) complete(ctx context.Context, system, user string) (string, error) {
	timeout := r.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := r.config.Model
	if m == "" {
		m = openai.GPT4oMini
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}
