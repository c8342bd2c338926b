package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soup8732/aisentinel/pkg/rank"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	embed := map[string]any{
		"title": fmt.Sprintf("📉 %s sentiment is %s", n.Tool, n.Trend),
		"description": fmt.Sprintf("**Rating:** %d/10 | **Perception:** %+.2f | **Mentions:** %d\n\n%s",
			rank.OutOf10(n.Overall), n.Perception, n.Mentions, n.Summary),
		"color":     0xE74C3C,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"fields": []map[string]any{
			{"name": "Category", "value": n.Category.DisplayName(), "inline": true},
			{"name": "Privacy", "value": fmt.Sprintf("%d/10", rank.PrivacyOutOf10(n.PrivacyScore)), "inline": true},
		},
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}

	return nil
}
