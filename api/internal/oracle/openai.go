package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// OpenAIClassifier asks an OpenAI compatible chat model to extract the intent.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClassifier(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (*Classification, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion")
	}
	return ParseClassification(resp.Choices[0].Message.Content)
}

// ParseClassification extracts the first JSON object from the model output.
func ParseClassification(text string) (*Classification, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("no json object in %q", text)
	}
	var out Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	out.Intent = strings.ToUpper(strings.TrimSpace(out.Intent))
	if out.Intent == "" {
		out.Intent = LabelUnknown
	}
	return &out, nil
}

const systemPrompt = `You extract bookkeeping intents from group chat messages and answer with JSON only.`

// BuildPrompt renders the sender, the roster and the message for the model.
func BuildPrompt(req Request) string {
	roster := make([]string, 0, len(req.Roster))
	for _, m := range req.Roster {
		roster = append(roster, fmt.Sprintf("%s: %s", m.Name(), m.Tag()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context:\n- Sender: %s (Handle: %s)\n", req.Sender.Name(), req.Sender.Tag())
	fmt.Fprintf(&b, "- Roster: [%s]\n", strings.Join(roster, ", "))
	fmt.Fprintf(&b, "- Message: %q\n\n", req.Text)
	b.WriteString(`Intents:
- "EXPENSE": the sender bought something ("Lunch", "Tickets").
- "PAYMENT": the sender pays back a debt ("Returned money to Mel").
- "BALANCE": checking balances.
- "SETTLE_INTENT": wants to settle up.
- "RESET": wants to clear all debts.
- "UNKNOWN": cannot tell what the sender wants.

Rules for "involved" and "mode":
1. "Spent 10 FOR Alice" -> mode "FOR", involved ["@alice"]. Alice owes the full amount.
2. "Lunch WITH Alice" -> mode "WITH", involved ["@alice"]. The sender is part of the split.
3. "Paid 10 TO Alice" -> PAYMENT, target_user "@alice".
4. No names in an EXPENSE -> involved ["ALL"].
5. A name not in the roster is returned raw ("@bob").
Leave amount or description null when the message does not say them.

Return JSON:
{"intent": "...", "amount": number or null, "description": string or null, "mode": "WITH" | "FOR" | null,
 "involved": [strings], "target_user": string or null, "reply_message": string or null}`)
	return b.String()
}
