package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chesslm/internal/obslog"
)

const maxWatchAttempts = 3

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

// Save writes rec unless a snapshot with more moves is already stored for the same game.
func (r *Redis) Save(ctx context.Context, rec Record) error {
	key := snapshotKey(rec.GameID)
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			curRaw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				var cur Record
				if jerr := json.Unmarshal(curRaw, &cur); jerr == nil && len(cur.MovesUCI) > len(rec.MovesUCI) {
					return ErrStaleSnapshot
				}
			}
			// 같은 게임의 최신 스냅샷만 유지, TTL은 저장마다 갱신
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, raw, r.ttl)
			_, err = pipe.Exec(ctx)
			return err
		}, key)
		// WATCH 충돌 시에만 재시도
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		obslog.L().Debug("snapshot_save_retry", zap.String("game_id", rec.GameID), zap.Int("attempt", attempt+1))
	}
	return err
}

func (r *Redis) Load(ctx context.Context, gameID string) (Record, error) {
	raw, err := r.rdb.Get(ctx, snapshotKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	return rec, nil
}

func snapshotKey(id string) string { return "chesslm:game:" + strings.TrimSpace(id) }

// parseRedisURL accepts redis:// and rediss:// URLs; rediss enables TLS.
func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}
