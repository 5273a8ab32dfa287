// Package guard implements the game operations: Start, Pin, Chat, Summary
// and Session.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/guard-labs/internal/completion"
	"github.com/ashureev/guard-labs/internal/domain"
	"github.com/ashureev/guard-labs/internal/level"
	"github.com/ashureev/guard-labs/internal/observability"
	"github.com/ashureev/guard-labs/internal/session"
)

// Counters is the telemetry sink written by Pin.
type Counters interface {
	Increment(key domain.CounterKey)
}

// Summarizer returns the aggregated counter view.
type Summarizer interface {
	Get(ctx context.Context) domain.Summary
}

// Config tunes the service.
type Config struct {
	Models      level.Models
	MaxTokens   int
	ChatTimeout time.Duration
	// MaxRetries bounds completion retries. Completions are not idempotent
	// with respect to token accounting, so keep this at 0 or 1.
	MaxRetries int
	RetryDelay time.Duration
	Mask       string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Models:      level.Models{Fast: "gpt-4o-mini", Capable: "gpt-4o"},
		MaxTokens:   512,
		ChatTimeout: 30 * time.Second,
		MaxRetries:  0,
		RetryDelay:  500 * time.Millisecond,
		Mask:        "****",
	}
}

// ChatMessage is a client-supplied conversation turn. Role is free-form;
// anything other than user or assistant is dropped.
type ChatMessage struct {
	Role    string
	Content string
}

// Service orchestrates sessions, counters and the completion backend.
type Service struct {
	sessions  *session.Store
	counters  Counters
	summary   Summarizer
	completer completion.Completer
	cfg       Config
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService creates a Service. metrics and logger may be nil.
func NewService(sessions *session.Store, counters Counters, summary Summarizer, completer completion.Completer, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:  sessions,
		counters:  counters,
		summary:   summary,
		completer: completer,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

func requireIdentity(identity string) error {
	if identity == "" {
		return newError(ErrBadRequest, "Could not determine IP address.", nil)
	}
	return nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return newError(ErrNotFound, "No active session", nil)
	case errors.Is(err, session.ErrUnknownLevel):
		return newError(ErrNotFound, "Unknown Level", nil)
	default:
		return newError(ErrNotFound, "No active session", err)
	}
}

// Start creates a fresh session for identity and returns the hint.
func (s *Service) Start(_ context.Context, identity string, difficulty int) (string, error) {
	if err := requireIdentity(identity); err != nil {
		return "", err
	}

	hint, replacedSolved := s.sessions.Start(identity, difficulty)
	s.metrics.SessionStarted(difficulty)
	if replacedSolved >= 0 {
		s.logger.Info("Replacing existing session", "identity", identity, "solved", replacedSolved)
	}
	s.logger.Info("Starting new session", "identity", identity, "difficulty", difficulty)
	return hint, nil
}

// Pin checks guess against level n and records the attempt.
func (s *Service) Pin(_ context.Context, identity string, n int, guess string) (bool, error) {
	if err := requireIdentity(identity); err != nil {
		return false, err
	}

	ok, err := s.sessions.Pin(identity, n, guess)
	if err != nil {
		return false, sessionError(err)
	}

	s.counters.Increment(domain.CounterKey{Metric: domain.MetricAttempts, Level: n})
	if ok {
		s.counters.Increment(domain.CounterKey{Metric: domain.MetricSuccesses, Level: n})
	}
	s.metrics.Pinned(n, ok)
	s.logger.Info("Pin request", "identity", identity, "level", n, "success", ok)
	return ok, nil
}

// Chat sends the conversation to level n's guard and returns its reply.
func (s *Service) Chat(ctx context.Context, identity string, n int, history []ChatMessage) (string, error) {
	if err := requireIdentity(identity); err != nil {
		return "", err
	}

	prompt, code, err := s.sessions.Chat(identity, n)
	if err != nil {
		return "", sessionError(err)
	}

	req := completion.Request{
		Model:        s.cfg.Models.For(n),
		SystemPrompt: prompt,
		History:      filterHistory(history),
		MaxTokens:    s.cfg.MaxTokens,
		User:         identity,
	}

	start := time.Now()
	text, err := s.complete(ctx, req)
	s.metrics.Chatted(n, level.TierFor(n).String(), time.Since(start), err)
	if err != nil {
		s.logger.Error("Completion failed", "identity", identity, "level", n, "error", err)
		return "", newError(ErrUpstream, "Completion backend unavailable", err)
	}

	if n == domain.MaskedLevel && code != "" {
		text = strings.ReplaceAll(text, code, s.cfg.Mask)
	}
	return text, nil
}

// complete calls the backend with a bounded timeout and at most
// cfg.MaxRetries retries.
func (s *Service) complete(ctx context.Context, req completion.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Debug("Retrying completion", "attempt", attempt+1, "delay", s.cfg.RetryDelay)
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := s.completeOnce(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (s *Service) completeOnce(ctx context.Context, req completion.Request) (string, error) {
	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}
	return s.completer.Complete(ctx, req)
}

func filterHistory(history []ChatMessage) []completion.Message {
	out := make([]completion.Message, 0, len(history))
	for _, m := range history {
		role, ok := completion.ParseRole(m.Role)
		if !ok {
			continue
		}
		out = append(out, completion.Message{Role: role, Content: m.Content})
	}
	return out
}

// Summary returns the cached attempts/successes view.
func (s *Service) Summary(ctx context.Context) domain.Summary {
	return s.summary.Get(ctx)
}

// Session returns every code of identity's session.
func (s *Service) Session(_ context.Context, identity string) ([]string, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	codes, err := s.sessions.PeekCodes(identity)
	if err != nil {
		return nil, sessionError(err)
	}
	s.logger.Warn("Session codes disclosed via debug endpoint", "identity", identity)
	return codes, nil
}
