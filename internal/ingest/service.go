package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinbridge/clinbridge/internal/canonical"
	"github.com/clinbridge/clinbridge/internal/platform/notify"
	"github.com/clinbridge/clinbridge/internal/platform/reasoning"
)

// Result is the per-message outcome reported back to the submitter.
type Result struct {
	MessageID      string            `json:"messageId"`
	Action         string            `json:"action"`
	RequiresReview bool              `json:"requiresReview"`
	Urgency        canonical.Urgency `json:"urgency"`
	ResponseText   string            `json:"responseText"`
}

// Service runs canonical messages through the reasoning and delivery
// collaborators. It holds no mutable state, so any number of requests may be
// processed concurrently.
type Service struct {
	engine reasoning.Engine
	sender notify.Sender
	logger zerolog.Logger
}

// NewService wires the pipeline's collaborators.
func NewService(engine reasoning.Engine, sender notify.Sender, logger zerolog.Logger) *Service {
	return &Service{engine: engine, sender: sender, logger: logger}
}

// Process attaches deep links, obtains a decision for each message, and
// hands the pair to the delivery collaborator. Failures are isolated per
// message: a reasoning error on one message degrades that message to a
// needs-review result and never aborts its siblings. Delivery failures are
// logged and otherwise ignored.
func (s *Service) Process(ctx context.Context, msgs []*canonical.Message) []Result {
	results := make([]Result, 0, len(msgs))

	for _, msg := range msgs {
		msg.AttachDeepLink()

		decision, err := s.engine.Decide(ctx, msg)
		if err != nil || !decision.Valid() {
			if err != nil {
				s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("reasoning failed")
			} else {
				s.logger.Warn().Str("message_id", msg.ID).Msg("reasoning returned incomplete decision")
			}
			decision = fallbackDecision(msg)
		}

		if err := s.sender.Send(ctx, msg, decision); err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("delivery failed")
		}

		results = append(results, Result{
			MessageID:      msg.ID,
			Action:         decision.Action,
			RequiresReview: *decision.RequiresReview,
			Urgency:        decision.Urgency,
			ResponseText:   decision.ResponseText,
		})
	}
	return results
}

// fallbackDecision marks a message for human review when the reasoning
// collaborator fails or returns an incomplete decision. The message's own
// urgency carries through so a critical alert is never silently downgraded.
func fallbackDecision(msg *canonical.Message) *reasoning.Decision {
	review := true
	return &reasoning.Decision{
		Reasoning:      "reasoning unavailable; queued for manual review",
		Action:         "queue_for_staff",
		ResponseText:   "Automatic triage was unavailable. Please review this message manually.",
		RequiresReview: &review,
		Urgency:        msg.Content.Urgency,
	}
}
