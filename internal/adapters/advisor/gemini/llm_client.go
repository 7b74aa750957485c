package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// Client is an implementation of the Advisor interface using Google Gemini
type Client struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

// NewClient creates a new Gemini advisory client
func NewClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Client{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are an email threat detection system. Analyze the following email and rate how likely it is spam or phishing.
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

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Analyze rates a message for spam/phishing likelihood
func (c *Client) Analyze(ctx context.Context, msg *core.Message) (*core.AdvisorResult, error) {
	body := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, msg.Sender, msg.Subject, body)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	parsed, err := parseAdvisoryResponse(text)
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
