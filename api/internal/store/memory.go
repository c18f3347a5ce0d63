package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
)

type pairKey struct {
	chatID int64
	userID int64
}

// MemoryContextStore is a process-local ContextStore. The clock is
// injectable so expiry can be tested deterministically.
type MemoryContextStore struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[pairKey]*model.PendingContext
}

func NewMemoryContextStore(now func() time.Time) *MemoryContextStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryContextStore{
		now:     now,
		pending: make(map[pairKey]*model.PendingContext),
	}
}

func (s *MemoryContextStore) Put(_ context.Context, p *model.PendingContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pending[pairKey{p.ChatID, p.UserID}] = &cp
	return nil
}

func (s *MemoryContextStore) Take(_ context.Context, chatID, userID int64) (*model.PendingContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{chatID, userID}
	p, ok := s.pending[key]
	if !ok {
		return nil, nil
	}
	delete(s.pending, key)
	if p.Expired(s.now()) {
		return nil, model.ErrStaleContext
	}
	return p, nil
}

func (s *MemoryContextStore) ExpireOlderThan(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, p := range s.pending {
		if p.Expired(now) {
			delete(s.pending, key)
			purged++
		}
	}
	return purged, nil
}

// MemoryLog is a process-local TransactionLog.
type MemoryLog struct {
	mu   sync.RWMutex
	logs map[int64][]model.Transaction
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{logs: make(map[int64][]model.Transaction)}
}

func (l *MemoryLog) Append(_ context.Context, tx *model.Transaction) (int64, error) {
	start := time.Now()
	defer func() { metrics.LogAppendDuration.WithLabelValues("memory").Observe(time.Since(start).Seconds()) }()
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.logs[tx.ChatID]
	tx.Seq = int64(len(entries)) + 1
	stored := *tx
	stored.Counterparties = append([]int64(nil), tx.Counterparties...)
	l.logs[tx.ChatID] = append(entries, stored)
	return tx.Seq, nil
}

func (l *MemoryLog) ReadAll(_ context.Context, chatID int64) ([]model.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.logs[chatID]
	out := make([]model.Transaction, len(entries))
	copy(out, entries)
	return out, nil
}

// MemoryMembers is a process-local MemberStore.
type MemoryMembers struct {
	mu      sync.RWMutex
	members map[int64]map[int64]model.Member
}

func NewMemoryMembers() *MemoryMembers {
	return &MemoryMembers{members: make(map[int64]map[int64]model.Member)}
}

func (s *MemoryMembers) Upsert(_ context.Context, chatID int64, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.members[chatID]
	if !ok {
		roster = make(map[int64]model.Member)
		s.members[chatID] = roster
	}
	m.Aliases = append([]string(nil), m.Aliases...)
	roster[m.ID] = m
	return nil
}

func (s *MemoryMembers) List(_ context.Context, chatID int64) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Member, 0, len(s.members[chatID]))
	for _, m := range s.members[chatID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
