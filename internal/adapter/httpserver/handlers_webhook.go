package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ew73/slack-karma/internal/app"
	"github.com/ew73/slack-karma/internal/domain"
	apperrors "github.com/ew73/slack-karma/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// webhookRequest is the payload of a Slack outgoing webhook. Slack posts it
// form-encoded; JSON is accepted for tooling.
type webhookRequest struct {
	Token       string `form:"token" json:"token"`
	TeamID      string `form:"team_id" json:"team_id"`
	ChannelID   string `form:"channel_id" json:"channel_id"`
	UserID      string `form:"user_id" json:"user_id"`
	UserName    string `form:"user_name" json:"user_name"`
	Text        string `form:"text" json:"text"`
	TriggerWord string `form:"trigger_word" json:"trigger_word"`
}

func (r webhookRequest) toEvent() domain.Event {
	return domain.Event{
		Token:       r.Token,
		UserName:    r.UserName,
		Text:        r.Text,
		UserID:      r.UserID,
		TeamID:      r.TeamID,
		ChannelID:   r.ChannelID,
		TriggerWord: r.TriggerWord,
	}
}

func (s *Server) handleSlackWebhook(c echo.Context) error {
	var req webhookRequest
	if err := c.Bind(&req); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return WrapHTTPError(httpErr)
		}
		return apperrors.ValidationError("invalid webhook payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.ProcessingTimeout)
	defer cancel()

	start := s.clock.Now()
	reply, outcome, err := s.karma.Handle(ctx, req.toEvent())
	s.voteMetrics.Observe(outcome, appliedOperator(outcome, req.Text), s.clock.Since(start))

	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		// Slack retries non-2xx deliveries; nothing was committed.
		return apperrors.RetryableError("karma store unavailable", err).
			WithContext("outcome", outcome.String())
	case errors.Is(err, domain.ErrInvalidKarma), errors.Is(err, domain.ErrMalformedDocument):
		// A redelivery would hit the same stored data.
		reply = domain.Reply{}
	case err != nil:
		return apperrors.InternalError("failed to handle webhook", err)
	}

	if err := c.JSON(http.StatusOK, reply); err != nil {
		return fmt.Errorf("failed to write webhook response: %w", err)
	}
	return nil
}

func appliedOperator(outcome domain.Outcome, text string) domain.Operator {
	if outcome != domain.OutcomeApplied {
		return ""
	}
	vote, _ := app.ParseVote(text)
	return vote.Operator
}
