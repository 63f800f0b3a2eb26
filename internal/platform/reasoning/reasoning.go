// Package reasoning defines the decision collaborator consumed by the
// ingestion pipeline. The collaborator is opaque to the core: it accepts one
// canonical message and returns a structured decision. The core validates
// only that the urgency and review fields are present; it never judges
// clinical content.
package reasoning

import (
	"context"
	"fmt"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

// Decision is the structured result returned by the collaborator.
// RequiresReview is a pointer so the core can distinguish an absent field
// from an explicit false.
type Decision struct {
	Reasoning      string            `json:"reasoning"`
	Action         string            `json:"action"`
	ResponseText   string            `json:"response_text"`
	RequiresReview *bool             `json:"requires_review"`
	Urgency        canonical.Urgency `json:"urgency"`
}

// Valid reports whether the decision carries the fields the core requires
// before forwarding it downstream.
func (d *Decision) Valid() bool {
	return d != nil && d.Urgency != "" && d.RequiresReview != nil
}

// Engine is the reasoning collaborator interface.
type Engine interface {
	Decide(ctx context.Context, msg *canonical.Message) (*Decision, error)
}

// RuleEngine is a deterministic fallback used when no LLM is configured and
// in tests. It is conservative: anything it cannot confidently file is
// flagged for human review.
type RuleEngine struct{}

// NewRuleEngine returns the deterministic fallback engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Decide implements Engine with fixed urgency-driven rules.
func (e *RuleEngine) Decide(_ context.Context, msg *canonical.Message) (*Decision, error) {
	review := true
	action := "notify_provider"
	text := fmt.Sprintf("Message %q requires provider attention.", msg.Content.Subject)

	switch msg.Content.Urgency {
	case canonical.UrgencyCritical:
		action = "page_provider"
		text = fmt.Sprintf("CRITICAL: %s. Immediate provider acknowledgment required.", msg.Content.Subject)
	case canonical.UrgencyStat, canonical.UrgencyUrgent:
		action = "notify_provider"
	default:
		if msg.Type == canonical.TypeGeneralNotification {
			review = false
			action = "file"
			text = fmt.Sprintf("Filed: %s", msg.Content.Subject)
		}
	}

	return &Decision{
		Reasoning:      "rule-based fallback decision",
		Action:         action,
		ResponseText:   text,
		RequiresReview: &review,
		Urgency:        msg.Content.Urgency,
	}, nil
}
