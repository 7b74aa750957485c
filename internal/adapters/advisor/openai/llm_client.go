package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// Client is an implementation of the Advisor interface using an
// OpenAI-compatible chat completion endpoint. With a custom base URL it
// also serves local Ollama or DeepSeek deployments.
type Client struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// advisoryResponse represents the structured response from the LLM
type advisoryResponse struct {
	SpamScore   float64  `json:"spam_score"`
	Confidence  float64  `json:"confidence"`
	Indicators  []string `json:"indicators"`
	Explanation string   `json:"explanation"`
}

// NewClient creates a new OpenAI advisory client
func NewClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Client {
	return &Client{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat:  advisoryPrompt,
	}
}

const advisoryPrompt = `You are an email threat detection system. Analyze the following email and rate how likely it is spam or phishing.
Respond with a JSON object containing:
- spam_score: number between 0 and 1 (higher means more likely spam or phishing)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- indicators: array of short strings naming the suspicious elements you found
- explanation: string (brief explanation of your rating)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// Analyze rates a message for spam/phishing likelihood
func (c *Client) Analyze(ctx context.Context, msg *core.Message) (*core.AdvisorResult, error) {
	body := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, msg.Sender, msg.Subject, body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email threat detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	parsed, err := parseAdvisoryResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.AdvisorResult{
		SpamScore:   parsed.SpamScore,
		Confidence:  parsed.Confidence,
		Indicators:  parsed.Indicators,
		Explanation: parsed.Explanation,
		ModelUsed:   c.modelName,
	}, nil
}

// parseAdvisoryResponse decodes the model output, tolerating prose around
// the JSON object.
func parseAdvisoryResponse(text string) (*advisoryResponse, error) {
	var parsed advisoryResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	start, end := -1, -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			end = i + 1
			break
		}
	}
	if start < 0 || end <= start {
		return nil, fmt.Errorf("failed to extract JSON from model response")
	}
	if err := json.Unmarshal([]byte(text[start:end]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}
