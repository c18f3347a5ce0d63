package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
)

// GET and DEL in one step, so two concurrent replies cannot both bind the
// same draft.
const takeScript = `
local v = redis.call("GET", KEYS[1])
if v then
	redis.call("DEL", KEYS[1])
end
return v
`

// RedisContextStore keeps pending drafts under ledgerbot:pending:<chat>:<user>
// with a TTL matching the draft's expiry.
type RedisContextStore struct {
	rds *redis.Redis
	now func() time.Time
}

func NewRedisContextStore(rds *redis.Redis, now func() time.Time) *RedisContextStore {
	if now == nil {
		now = time.Now
	}
	return &RedisContextStore{rds: rds, now: now}
}

func (s *RedisContextStore) Put(ctx context.Context, p *model.PendingContext) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending context: %w", err)
	}
	ttl := int(p.ExpiresAt.Sub(s.now()).Seconds())
	if ttl < 1 {
		ttl = 1
	}
	if err := s.rds.SetexCtx(ctx, pendingKey(p.ChatID, p.UserID), string(data), ttl); err != nil {
		return fmt.Errorf("save pending context: %w", err)
	}
	return nil
}

func (s *RedisContextStore) Take(ctx context.Context, chatID, userID int64) (*model.PendingContext, error) {
	val, err := s.rds.EvalCtx(ctx, takeScript, []string{pendingKey(chatID, userID)})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take pending context: %w", err)
	}
	if val == nil {
		return nil, nil
	}
	data, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("take pending context: unexpected reply %T", val)
	}
	var p model.PendingContext
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode pending context: %w", err)
	}
	if p.Expired(s.now()) {
		return nil, model.ErrStaleContext
	}
	return &p, nil
}

// ExpireOlderThan is a no-op, Redis drops keys on TTL.
func (s *RedisContextStore) ExpireOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisContextStore) Ping(ctx context.Context) error {
	if !s.rds.PingCtx(ctx) {
		return errors.New("redis ping failed")
	}
	return nil
}

// RedisLog stores each chat log as a Redis list. The list position is the
// sequence number, so RPUSH assigns it atomically.
type RedisLog struct {
	rds *redis.Redis
}

func NewRedisLog(rds *redis.Redis) *RedisLog {
	return &RedisLog{rds: rds}
}

func (l *RedisLog) Append(ctx context.Context, tx *model.Transaction) (int64, error) {
	start := time.Now()
	defer func() { metrics.LogAppendDuration.WithLabelValues("redis").Observe(time.Since(start).Seconds()) }()

	data, err := json.Marshal(tx)
	if err != nil {
		return 0, fmt.Errorf("marshal transaction: %w", err)
	}
	n, err := l.rds.RpushCtx(ctx, logKey(tx.ChatID), string(data))
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	tx.Seq = int64(n)
	return tx.Seq, nil
}

func (l *RedisLog) ReadAll(ctx context.Context, chatID int64) ([]model.Transaction, error) {
	rows, err := l.rds.LrangeCtx(ctx, logKey(chatID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	out := make([]model.Transaction, 0, len(rows))
	for i, row := range rows {
		var tx model.Transaction
		if err := json.Unmarshal([]byte(row), &tx); err != nil {
			return nil, fmt.Errorf("decode transaction %d: %w", i+1, err)
		}
		tx.Seq = int64(i + 1)
		out = append(out, tx)
	}
	return out, nil
}

// RedisMembers stores a chat roster as a hash of user id -> member JSON.
type RedisMembers struct {
	rds *redis.Redis
}

func NewRedisMembers(rds *redis.Redis) *RedisMembers {
	return &RedisMembers{rds: rds}
}

func (s *RedisMembers) Upsert(ctx context.Context, chatID int64, m model.Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := s.rds.HsetCtx(ctx, membersKey(chatID), strconv.FormatInt(m.ID, 10), string(data)); err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	return nil
}

func (s *RedisMembers) List(ctx context.Context, chatID int64) ([]model.Member, error) {
	rows, err := s.rds.HgetallCtx(ctx, membersKey(chatID))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]model.Member, 0, len(rows))
	for field, row := range rows {
		var m model.Member
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("decode member %s: %w", field, err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
