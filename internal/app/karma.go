package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ew73/slack-karma/internal/domain"
	"github.com/ew73/slack-karma/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// HandlerConfig carries the per-deployment values every event is checked against.
type HandlerConfig struct {
	WebhookSecret string
	BotName       string
}

const (
	saveAttempts       = 3
	saveInitialBackoff = 50 * time.Millisecond
	standingsFlightKey = "standings"
)

// KarmaService applies karma votes found in chat messages.
//
// Each vote loads the whole document, changes one subject and writes the whole
// document back. There is no locking across that load/save pair, so two
// overlapping votes can lose one update.
type KarmaService struct {
	cfg        HandlerConfig
	store      domain.DocumentStore
	savePolicy retry.Policy
	readGroup  singleflight.Group
}

func NewKarmaService(cfg HandlerConfig, store domain.DocumentStore, clock clockwork.Clock) *KarmaService {
	return &KarmaService{
		cfg:   cfg,
		store: store,
		savePolicy: retry.Policy{
			MaxAttempts:    saveAttempts,
			InitialBackoff: saveInitialBackoff,
			Clock:          clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Saving karma document failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Handle processes one inbound event. A zero Reply with a nil error means the
// event was intentionally ignored. An error is only returned when the store
// could not be read or written (OutcomeStoreUnavailable), or when the document
// or the subject's value cannot be interpreted (OutcomeInvalidValue).
func (s *KarmaService) Handle(ctx context.Context, event domain.Event) (domain.Reply, domain.Outcome, error) {
	slog.DebugContext(ctx, "Chat event received",
		"user", event.UserName, "channel", event.ChannelID, "trigger_word", event.TriggerWord, "text", event.Text)

	if subtle.ConstantTimeCompare([]byte(event.Token), []byte(s.cfg.WebhookSecret)) != 1 {
		slog.InfoContext(ctx, "Rejecting event with bad token", "team", event.TeamID, "channel", event.ChannelID)
		return domain.Reply{}, domain.OutcomeUnauthorized, nil
	}

	if event.UserName == s.cfg.BotName {
		slog.DebugContext(ctx, "Ignoring our own message", "user", event.UserName)
		return domain.Reply{}, domain.OutcomeSelfMessage, nil
	}

	vote, ok := ParseVote(event.Text)
	if !ok {
		return domain.Reply{}, domain.OutcomeNoMatch, nil
	}

	slog.InfoContext(ctx, "Karma vote",
		"operator", vote.Operator, "subject", vote.Subject,
		"user", event.UserName, "user_id", event.UserID, "team", event.TeamID, "channel", event.ChannelID)

	karma, outcome, err := s.apply(ctx, vote)
	if err != nil {
		return domain.Reply{}, outcome, err
	}

	return domain.Reply{Text: fmt.Sprintf("%s has %d karma.", vote.DisplaySubject(), karma)}, outcome, nil
}

func (s *KarmaService) apply(ctx context.Context, vote domain.Vote) (int64, domain.Outcome, error) {
	doc, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrMalformedDocument) {
		slog.ErrorContext(ctx, "Refusing vote on malformed karma document", "error", err)
		return 0, domain.OutcomeInvalidValue, err
	}
	if err != nil {
		slog.ErrorContext(ctx, "Loading karma document failed", "error", err)
		return 0, domain.OutcomeStoreUnavailable, fmt.Errorf("%w: load: %w", domain.ErrStoreUnavailable, err)
	}

	current, err := doc.Karma(vote.Subject)
	if err != nil {
		slog.WarnContext(ctx, "Refusing vote on non-numeric karma value", "subject", vote.Subject, "error", err)
		return 0, domain.OutcomeInvalidValue, err
	}

	current = vote.Operator.Apply(current)
	doc.SetKarma(vote.Subject, current)

	err = retry.DoVoid(ctx, s.savePolicy, retry.ContextAware, func() error {
		return s.store.Save(ctx, doc)
	})
	if err != nil {
		slog.ErrorContext(ctx, "Saving karma document failed", "subject", vote.Subject, "error", err)
		return 0, domain.OutcomeStoreUnavailable, fmt.Errorf("%w: save: %w", domain.ErrStoreUnavailable, err)
	}

	return current, domain.OutcomeApplied, nil
}

// Standings returns up to limit subjects ordered by karma; limit <= 0 means all.
// Concurrent callers share a single document load.
func (s *KarmaService) Standings(ctx context.Context, limit int) ([]domain.Standing, error) {
	v, err, _ := s.readGroup.Do(standingsFlightKey, func() (any, error) {
		doc, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		standings, invalid := doc.Standings()
		if len(invalid) > 0 {
			slog.WarnContext(ctx, "Skipping subjects with non-numeric karma", "subjects", invalid)
		}
		return standings, nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	standings := v.([]domain.Standing)
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return slices.Clone(standings), nil
}

// Lookup returns the karma of subject, keyed exactly as stored (quotes included).
func (s *KarmaService) Lookup(ctx context.Context, subject string) (int64, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return 0, storeError(err)
	}
	karma, err := doc.Karma(subject)
	if err != nil {
		return 0, err
	}
	return karma, nil
}

// Set overwrites the karma of subject. Used by admin tooling only.
func (s *KarmaService) Set(ctx context.Context, subject string, value int64) error {
	if subject == "" {
		return errors.New("subject must not be empty")
	}

	doc, err := s.store.Load(ctx)
	if err != nil {
		return storeError(err)
	}
	doc.SetKarma(subject, value)

	if err := retry.DoVoid(ctx, s.savePolicy, retry.ContextAware, func() error {
		return s.store.Save(ctx, doc)
	}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// storeError marks a load failure as an outage unless the document itself is
// unreadable.
func storeError(err error) error {
	if errors.Is(err, domain.ErrMalformedDocument) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
