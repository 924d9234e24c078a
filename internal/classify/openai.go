package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You classify short lecture transcript excerpts.
Decide whether the excerpt contains a teachable moment: a definition, a formula, or a worked example.
Respond with a single JSON object and nothing else:
{"isHighlight": bool, "type": "definition"|"formula"|"example"|"concept", "title": string, "excerpt": string, "confidence": number between 0 and 1}
If the excerpt is ordinary narration, return {"isHighlight": false}.`

// OpenAI classifies windows with a chat completion constrained to JSON.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAI creates an OpenAI-backed classifier. Empty model selects gpt-4o-mini.
func NewOpenAI(apiKey, model string, logger *zap.Logger) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model, logger: logger}
}

// Classify sends the window to the model. A transport or API failure is
// returned to the caller; a malformed model reply degrades to "no highlight".
func (o *OpenAI) Classify(ctx context.Context, text string) (Result, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, nil
	}

	result, ok := parseResult(resp.Choices[0].Message.Content)
	if !ok {
		o.logger.Warn("classifier returned invalid JSON", zap.String("reply", resp.Choices[0].Message.Content))
		return Result{}, nil
	}
	return result, nil
}

// parseResult extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose.
func parseResult(reply string) (Result, bool) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal([]byte(reply[start:end+1]), &result); err != nil {
		return Result{}, false
	}
	return result, true
}
