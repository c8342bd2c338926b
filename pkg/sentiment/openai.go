package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

const openAISystemPrompt = "You rate the sentiment of social media posts about AI developer tools. " +
	"You always answer with strict JSON and nothing else."

// OpenAIScorer rates a whole batch with one chat completion. The model is
// asked for a JSON array of {index, score, confidence}; entries it skips
// stay neutral.
type OpenAIScorer struct {
	client openai.Client
	model  string
}

func NewOpenAIScorer(apiKey, model string) *OpenAIScorer {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIScorer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *OpenAIScorer) Name() string { return "openai" }

func (s *OpenAIScorer) Score(ctx context.Context, text string) (Result, error) {
	results, err := s.ScoreBatch(ctx, []string{text})
	if err != nil {
		return Neutral(), err
	}
	return results[0], nil
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return []Result{}, nil
	}

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(buildScorePrompt(texts)),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(4000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseScoreReply(response.Choices[0].Message.Content, len(texts))
}

func buildScorePrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Rate the sentiment each post expresses toward the AI tool it mentions.\n\n")
	b.WriteString("Posts:\n")
	for i, t := range texts {
		b.WriteString(fmt.Sprintf("%d. %s\n", i, truncateText(t, 500)))
	}
	b.WriteString("\nRespond with a JSON array, one object per post:\n")
	b.WriteString(`[{"index": 0, "score": 0.8, "confidence": 0.9}]` + "\n\n")
	b.WriteString("score is a float in [-1, 1]: -1 strongly negative, 0 neutral, 1 strongly positive.\n")
	b.WriteString("confidence is a float in [0, 1].\n")
	b.WriteString("Return ONLY the JSON array, no other text.")
	return b.String()
}

// parseScoreReply decodes the model reply into one result per input.
// Indexes the model skipped stay neutral; out-of-range indexes are ignored.
func parseScoreReply(content string, n int) ([]Result, error) {
	content = stripCodeFences(content)

	var entries []struct {
		Index      int     `json:"index"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &entries); err != nil {
		return nil, fmt.Errorf("parse score reply: %w", err)
	}

	results := make([]Result, n)
	for i := range results {
		results[i] = Neutral()
	}
	for _, e := range entries {
		if e.Index < 0 || e.Index >= n {
			continue
		}
		results[e.Index] = Clamped(Result{Score: e.Score, Confidence: e.Confidence})
	}
	return results, nil
}

// stripCodeFences unwraps replies the model insists on fencing as
// ```json ... ``` despite the prompt.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

// truncateText cuts s to at most maxLen bytes, backing up to a rune
// boundary so the result stays valid UTF-8.
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
