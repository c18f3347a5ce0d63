package store

import (
	"context"
	"fmt"
	"time"

	"github.com/qx/ledgerbot/api/internal/model"
)

// ContextStore keeps at most one pending draft per (chat, user).
// Put and Take must be atomic per key so that a draft is consumed at most once.
type ContextStore interface {
	// Put overwrites any pending context for the same chat and user.
	Put(ctx context.Context, p *model.PendingContext) error
	// Take removes and returns the pending context. It returns (nil, nil) when
	// there is none and model.ErrStaleContext when the one found had expired.
	Take(ctx context.Context, chatID, userID int64) (*model.PendingContext, error)
	// ExpireOlderThan purges contexts that are stale at now.
	ExpireOlderThan(ctx context.Context, now time.Time) (int, error)
}

// TransactionLog is the append-only per-chat transaction store.
type TransactionLog interface {
	// Append assigns the next sequence number of the chat to tx, stores it
	// durably and returns the sequence number.
	Append(ctx context.Context, tx *model.Transaction) (int64, error)
	// ReadAll returns the chat's transactions in append order.
	ReadAll(ctx context.Context, chatID int64) ([]model.Transaction, error)
}

// MemberStore persists the participant registry.
type MemberStore interface {
	Upsert(ctx context.Context, chatID int64, m model.Member) error
	List(ctx context.Context, chatID int64) ([]model.Member, error)
}

// Pinger is implemented by backends that hold a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

func pendingKey(chatID, userID int64) string {
	return fmt.Sprintf("ledgerbot:pending:%d:%d", chatID, userID)
}

func logKey(chatID int64) string {
	return fmt.Sprintf("ledgerbot:log:%d", chatID)
}

func membersKey(chatID int64) string {
	return fmt.Sprintf("ledgerbot:members:%d", chatID)
}
