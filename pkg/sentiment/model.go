package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModelBaseURL = "https://api-inference.huggingface.co/models"
	defaultModelID      = "distilbert-base-uncased-finetuned-sst-2-english"
)

// ModelScorer calls a hosted text-classification model. The response is a
// ranked class list per input; the top class is mapped onto a signed
// score: negative classes score -confidence, positive ones +confidence.
type ModelScorer struct {
	client  *http.Client
	baseURL string
	model   string
	token   string
}

// NewModelScorer builds a scorer against baseURL/model. Empty arguments
// fall back to the public inference endpoint and the default SST-2 model;
// token is optional.
func NewModelScorer(baseURL, model, token string) *ModelScorer {
	if baseURL == "" {
		baseURL = defaultModelBaseURL
	}
	if model == "" {
		model = defaultModelID
	}
	return &ModelScorer{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
	}
}

func (m *ModelScorer) Name() string { return "model" }

func (m *ModelScorer) Score(ctx context.Context, text string) (Result, error) {
	results, err := m.ScoreBatch(ctx, []string{text})
	if err != nil {
		return Neutral(), err
	}
	return results[0], nil
}

func (m *ModelScorer) ScoreBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	for i := range results {
		results[i] = Neutral()
	}

	// Blank texts never reach the model; their slots stay neutral.
	idx := make([]int, 0, len(texts))
	send := make([]string, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		idx = append(idx, i)
		send = append(send, t)
	}
	if len(send) == 0 {
		return results, nil
	}

	classes, err := m.classify(ctx, send)
	if err != nil {
		return nil, err
	}
	if len(classes) != len(send) {
		return nil, fmt.Errorf("model returned %d results for %d texts", len(classes), len(send))
	}

	for i, ranked := range classes {
		results[idx[i]] = resultFromClasses(ranked)
	}
	return results, nil
}

type modelClass struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (m *ModelScorer) classify(ctx context.Context, texts []string) ([][]modelClass, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":  texts,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/"+m.model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var classes [][]modelClass
	if err := json.Unmarshal(body, &classes); err != nil {
		// Single-input deployments return one flat class list.
		var flat []modelClass
		if err2 := json.Unmarshal(body, &flat); err2 != nil || len(texts) != 1 {
			return nil, fmt.Errorf("decode model response: %w", err)
		}
		classes = [][]modelClass{flat}
	}
	return classes, nil
}

func resultFromClasses(ranked []modelClass) Result {
	if len(ranked) == 0 {
		return Neutral()
	}
	top := ranked[0]
	for _, c := range ranked[1:] {
		if c.Score > top.Score {
			top = c
		}
	}

	conf := clamp(top.Score, 0, 1)
	label := strings.ToLower(top.Label)
	switch {
	case strings.HasPrefix(label, "neg") || label == "label_0":
		return Clamped(Result{Score: -conf, Confidence: conf})
	case strings.HasPrefix(label, "pos") || label == "label_2":
		return Clamped(Result{Score: conf, Confidence: conf})
	default:
		return Result{Score: 0, Label: LabelNeutral, Confidence: conf}
	}
}
