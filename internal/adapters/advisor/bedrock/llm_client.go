package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/utils"
)

// Client is an implementation of the Advisor interface using Amazon Bedrock
type Client struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewClient creates a new Bedrock advisory client
func NewClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Client {
	return &Client{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// Analyze rates a message for spam/phishing likelihood
func (c *Client) Analyze(ctx context.Context, msg *core.Message) (*core.AdvisorResult, error) {
	body := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, msg.Sender, msg.Subject, body)

	// Request payload format depends on the model family.
	var payload []byte
	var err error
	switch {
	case c.isAnthropicModel():
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	case c.isAmazonTitanModel():
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.extractResponseText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseAdvisoryResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.AdvisorResult{
		SpamScore:   parsed.SpamScore,
		Confidence:  parsed.Confidence,
		Indicators:  parsed.Indicators,
		Explanation: parsed.Explanation,
		ModelUsed:   c.modelID,
	}, nil
}

// extractResponseText pulls the generated text out of the model-specific
// response envelope.
func (c *Client) extractResponseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *Client) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *Client) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
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
