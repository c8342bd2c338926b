// Package alert delivers sentiment-decline notifications to Slack,
// Discord, Telegram, and generic webhooks.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Notification describes a tool whose sentiment tripped the alert rule.
type Notification struct {
	Tool         string            `json:"tool"`
	Category     taxonomy.Category `json:"category"`
	Overall      float64           `json:"overall"`
	Perception   float64           `json:"perception"`
	PrivacyScore float64           `json:"privacy_score"`
	Trend        rank.Trend        `json:"trend"`
	Mentions     int               `json:"mentions"`
	Summary      string            `json:"summary"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to every notifier. Failures are
// collected so one broken destination never blocks the rest.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
