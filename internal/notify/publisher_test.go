package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/park285/grand-chess-realms/internal/record"
	"github.com/park285/grand-chess-realms/pkg/matchdto"
)

type hook struct {
	mu       sync.Mutex
	statuses []int
	keys     []string
	bodies   [][]byte
}

func (h *hook) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.keys = append(h.keys, r.Header.Get(idempotencyHeader))
		h.bodies = append(h.bodies, body)
		status := http.StatusOK
		if n := len(h.keys) - 1; n < len(h.statuses) {
			status = h.statuses[n]
		}
		h.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "ack")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastBackoff(int) time.Duration { return time.Millisecond }

func TestPublishRetriesServerErrors(t *testing.T) {
	h := &hook{statuses: []int{503, 502}}
	srv := h.server(t)
	p := NewPublisher(srv.URL, withBackoff(fastBackoff))

	rec := &record.MatchRecord{ID: "m-1", Opponent: "Borin", Result: "win", MovesUCI: []string{"e2e4"}, Duration: 2 * time.Second}
	if err := p.PublishRecord(context.Background(), rec); err != nil {
		t.Fatalf("PublishRecord: %v", err)
	}
	if len(h.keys) != 3 {
		t.Fatalf("attempts = %d, want 3", len(h.keys))
	}
	for _, k := range h.keys {
		if k != "m-1" {
			t.Fatalf("idempotency keys = %v", h.keys)
		}
	}
	var got matchdto.MatchResult
	if err := json.Unmarshal(h.bodies[2], &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Opponent != "Borin" || got.Plies != 1 || got.DurationMS != 2000 {
		t.Fatalf("payload = %+v", got)
	}
}

func TestPublishDoesNotRetryClientErrors(t *testing.T) {
	h := &hook{statuses: []int{400}}
	p := NewPublisher(h.server(t).URL, withBackoff(fastBackoff))
	err := p.Publish(context.Background(), map[string]string{"x": "y"})
	var de matchdto.DeliveryError
	if !errors.As(err, &de) || de.Status != 400 || de.Retryable {
		t.Fatalf("err = %v", err)
	}
	if len(h.keys) != 1 || h.keys[0] == "" {
		t.Fatalf("keys = %v", h.keys)
	}
}

func TestPublishGivesUp(t *testing.T) {
	h := &hook{statuses: []int{500, 500, 500}}
	p := NewPublisher(h.server(t).URL, WithRetry(3), withBackoff(fastBackoff))
	err := p.Publish(context.Background(), struct{}{})
	var de matchdto.DeliveryError
	if !errors.As(err, &de) || !de.Retryable {
		t.Fatalf("err = %v", err)
	}
	if len(h.keys) != 3 {
		t.Fatalf("attempts = %d", len(h.keys))
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p := NewPublisher("")
	if p.Enabled() {
		t.Fatalf("empty URL enabled")
	}
	if err := p.Publish(context.Background(), struct{}{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestPublishHonorsContext(t *testing.T) {
	h := &hook{}
	p := NewPublisher(h.server(t).URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, struct{}{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(h.keys) != 0 {
		t.Fatalf("request sent after cancel")
	}
}

func TestPublishResultCarriesStanding(t *testing.T) {
	h := &hook{}
	p := NewPublisher(h.server(t).URL)
	res := ResultFromRecord(&record.MatchRecord{ID: "m-2", Result: "draw"})
	res.Standing = StandingFromStats(record.Stats{Played: 4, Wins: 2, Draws: 2})
	if err := p.PublishResult(context.Background(), res); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}
	var got matchdto.MatchResult
	if err := json.Unmarshal(h.bodies[0], &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Standing == nil || got.Standing.Played != 4 || got.Standing.Draws != 2 || h.keys[0] != "m-2" {
		t.Fatalf("payload = %+v keys = %v", got, h.keys)
	}
	if err := p.PublishResult(context.Background(), matchdto.MatchResult{}); err == nil {
		t.Fatalf("result without id accepted")
	}
}
