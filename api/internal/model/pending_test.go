package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPendingContextJSON(t *testing.T) {
	amount := decimal.RequireFromString("12.50")
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payer := Member{ID: 1, DisplayName: "You", Handle: "you"}

	tests := []struct {
		name  string
		draft Intent
	}{
		{
			name:  "expense",
			draft: &ExpenseIntent{Description: "Pizza", Payer: payer, Mode: PaidFor, Participants: []string{"@alice"}},
		},
		{
			name:  "payment",
			draft: &PaymentIntent{Amount: &amount, Description: "Payment", Payer: payer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := PendingContext{
				ChatID:    -100,
				UserID:    1,
				Draft:     tt.draft,
				CreatedAt: created,
				ExpiresAt: created.Add(5 * time.Minute),
			}
			data, err := json.Marshal(in)
			if err != nil {
				t.Fatal(err)
			}
			var out PendingContext
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatal(err)
			}
			if out.ChatID != in.ChatID || out.UserID != in.UserID || !out.ExpiresAt.Equal(in.ExpiresAt) {
				t.Errorf("got %+v, want %+v", out, in)
			}
			if out.Draft.Kind() != tt.draft.Kind() {
				t.Fatalf("Kind() = %s, want %s", out.Draft.Kind(), tt.draft.Kind())
			}
			if !reflect.DeepEqual(out.Draft.Missing(), tt.draft.Missing()) {
				t.Errorf("Missing() = %v, want %v", out.Draft.Missing(), tt.draft.Missing())
			}
		})
	}
}

func TestPendingContextRejectsCompleteKinds(t *testing.T) {
	_, err := json.Marshal(PendingContext{Draft: &ResetIntent{}})
	if err == nil {
		t.Error("marshalling a reset draft succeeded")
	}
}

func TestPendingContextExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &PendingContext{ExpiresAt: now}
	if p.Expired(now.Add(-time.Second)) {
		t.Error("expired before its deadline")
	}
	if !p.Expired(now) {
		t.Error("not expired at its deadline")
	}
}

func TestIntentMissing(t *testing.T) {
	zero := decimal.Zero
	tests := []struct {
		name   string
		intent Intent
		want   []Field
	}{
		{"expense complete", &ExpenseIntent{Amount: ptr(decimal.NewFromInt(5)), Description: "x"}, nil},
		{"expense zero amount", &ExpenseIntent{Amount: &zero, Description: "x"}, []Field{FieldAmount}},
		{"expense empty", &ExpenseIntent{}, []Field{FieldAmount, FieldDescription}},
		{"payment no recipient", &PaymentIntent{Amount: ptr(decimal.NewFromInt(5))}, []Field{FieldRecipient}},
		{"query", &QueryIntent{Query: QueryBalance}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.intent.Missing(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Missing() = %v, want %v", got, tt.want)
			}
			if IsComplete(tt.intent) != (len(tt.want) == 0) {
				t.Errorf("IsComplete() = %v", IsComplete(tt.intent))
			}
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	for _, tok := range []string{"@Alice", "alice", " ALICE ", "@alice"} {
		if got := NormalizeToken(tok); got != "alice" {
			t.Errorf("NormalizeToken(%q) = %q", tok, got)
		}
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
