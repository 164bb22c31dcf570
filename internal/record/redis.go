package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string with a TTL, a sorted index
// scored by end time, and a hash of result counters.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "realms"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// OpenRedis dials redisURL ("redis://host:port/db") and pings it.
func OpenRedis(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, prefix, ttl), nil
}

func (s *RedisStore) keyRecord(id string) string { return s.prefix + ":match:" + strings.TrimSpace(id) }
func (s *RedisStore) keyIndex() string           { return s.prefix + ":matches" }
func (s *RedisStore) keyStats() string           { return s.prefix + ":stats" }

func (s *RedisStore) Save(ctx context.Context, rec *MatchRecord) error {
	if rec == nil {
		return errors.New("nil match record")
	}
	ensureID(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match record: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.keyRecord(rec.ID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store match record: %w", err)
	}
	if !ok {
		return ErrDuplicateRecord
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, s.keyIndex(), redis.Z{Score: float64(toMillis(rec.EndedAt)), Member: rec.ID})
	pipe.HIncrBy(ctx, s.keyStats(), "played", 1)
	if field := statsField(rec.Result); field != "" {
		pipe.HIncrBy(ctx, s.keyStats(), field, 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index match record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*MatchRecord, error) {
	raw, err := s.rdb.Get(ctx, s.keyRecord(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load match record: %w", err)
	}
	var rec MatchRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal match record: %w", err)
	}
	return &rec, nil
}

// Recent walks the index newest first and prunes entries whose record expired.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	limit = clampLimit(limit)
	ids, err := s.rdb.ZRevRange(ctx, s.keyIndex(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read match index: %w", err)
	}
	out := make([]*MatchRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			_ = s.rdb.ZRem(ctx, s.keyIndex(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	vals, err := s.rdb.HGetAll(ctx, s.keyStats()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	var st Stats
	for field, v := range vals {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			continue
		}
		switch field {
		case "played":
			st.Played = n
		case "win":
			st.Wins = n
		case "loss":
			st.Losses = n
		case "draw":
			st.Draws = n
		}
	}
	return st, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func statsField(result string) string {
	switch result {
	case "win", "loss", "draw":
		return result
	default:
		return ""
	}
}
