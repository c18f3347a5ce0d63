package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PendingContext holds an incomplete draft for one user in one chat while
// the bot waits for the missing field.
type PendingContext struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Draft     Intent    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the context is stale at now.
func (p *PendingContext) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

type pendingEnvelope struct {
	ChatID    int64          `json:"chat_id"`
	UserID    int64          `json:"user_id"`
	Kind      IntentKind     `json:"kind"`
	Expense   *ExpenseIntent `json:"expense,omitempty"`
	Payment   *PaymentIntent `json:"payment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (p PendingContext) MarshalJSON() ([]byte, error) {
	env := pendingEnvelope{
		ChatID:    p.ChatID,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}
	switch d := p.Draft.(type) {
	case *ExpenseIntent:
		env.Kind, env.Expense = KindExpense, d
	case *PaymentIntent:
		env.Kind, env.Payment = KindPayment, d
	default:
		return nil, fmt.Errorf("draft of type %T cannot be pending", p.Draft)
	}
	return json.Marshal(env)
}

func (p *PendingContext) UnmarshalJSON(data []byte) error {
	var env pendingEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.ChatID = env.ChatID
	p.UserID = env.UserID
	p.CreatedAt = env.CreatedAt
	p.ExpiresAt = env.ExpiresAt
	switch env.Kind {
	case KindExpense:
		if env.Expense == nil {
			return fmt.Errorf("pending expense without body")
		}
		p.Draft = env.Expense
	case KindPayment:
		if env.Payment == nil {
			return fmt.Errorf("pending payment without body")
		}
		p.Draft = env.Payment
	default:
		return fmt.Errorf("unknown pending kind %q", env.Kind)
	}
	return nil
}
