// Package notify posts finished match results to an HTTP webhook.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/record"
	"github.com/park285/grand-chess-realms/pkg/matchdto"
)

const idempotencyHeader = "X-Idempotency-Key"

type Publisher struct {
	url      string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
	backoff  func(attempt int) time.Duration
	logger   *zap.Logger
}

type Option func(*Publisher)

func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

func WithRetry(max int) Option {
	return func(p *Publisher) { p.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

func withBackoff(f func(int) time.Duration) Option {
	return func(p *Publisher) { p.backoff = f }
}

func NewPublisher(url string, opts ...Option) *Publisher {
	p := &Publisher{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		timeout:  10 * time.Second,
		retryMax: 3,
		backoff:  backoffDuration,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled is false when no webhook URL is configured; Publish is then a no-op.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// PublishRecord sends rec as a matchdto.MatchResult keyed by the record ID.
func (p *Publisher) PublishRecord(ctx context.Context, rec *record.MatchRecord) error {
	if rec == nil {
		return errors.New("nil match record")
	}
	return p.PublishResult(ctx, ResultFromRecord(rec))
}

// PublishResult sends res keyed by its ID.
func (p *Publisher) PublishResult(ctx context.Context, res matchdto.MatchResult) error {
	if res.ID == "" {
		return errors.New("match result without id")
	}
	return p.publish(ctx, res.ID, res)
}

// Publish posts payload as JSON. A fresh idempotency key is shared by all retries.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	return p.publish(ctx, uuid.NewString(), payload)
}

func (p *Publisher) publish(ctx context.Context, key string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(p.url)
	req.Header.SetContentType("application/json")
	req.Header.Set(idempotencyHeader, key)
	req.SetBody(body)

	attempts := p.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.http.DoDeadline(req, resp, p.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				p.logger.Debug("webhook_delivered", zap.String("key", key), zap.Int("attempt", attempt))
				return nil
			}
			err = matchdto.DeliveryError{Status: status, Body: truncate(string(resp.Body()), 512), Retryable: shouldRetryStatus(status)}
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		p.logger.Warn("webhook_attempt_failed", zap.Int("attempt", attempt), zap.Int("max_attempts", attempts), zap.Error(err))
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, p.backoff(attempt)); err != nil {
			return lastErr
		}
	}
	return fmt.Errorf("publish after %d attempt(s): %w", attempts, lastErr)
}

func (p *Publisher) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(p.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

func ResultFromRecord(rec *record.MatchRecord) matchdto.MatchResult {
	return matchdto.MatchResult{
		ID:            rec.ID,
		Opponent:      rec.Opponent,
		Elo:           rec.Elo,
		Result:        rec.Result,
		Reason:        rec.Reason,
		TimeControl:   rec.TimeControl,
		Plies:         len(rec.MovesUCI),
		PhysicalMoves: rec.PhysicalMoves,
		Simulated:     rec.Simulated,
		PGN:           rec.PGN,
		StartedAt:     rec.StartedAt,
		EndedAt:       rec.EndedAt,
		DurationMS:    rec.Duration.Milliseconds(),
	}
}

func StandingFromStats(st record.Stats) *matchdto.Standing {
	return &matchdto.Standing{Played: st.Played, Wins: st.Wins, Losses: st.Losses, Draws: st.Draws}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
