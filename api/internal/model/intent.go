package model

import (
	"github.com/shopspring/decimal"
)

type IntentKind string

const (
	KindExpense IntentKind = "EXPENSE"
	KindPayment IntentKind = "PAYMENT"
	KindQuery   IntentKind = "QUERY"
	KindReset   IntentKind = "RESET"
)

type SplitMode string

const (
	// SplitWith divides the amount between the payer and the participants.
	SplitWith SplitMode = "SPLIT_WITH"
	// PaidFor makes every participant owe the full amount to the payer.
	PaidFor SplitMode = "PAID_FOR"
)

type QueryKind string

const (
	QueryBalance QueryKind = "BALANCE"
	QuerySettle  QueryKind = "SETTLE"
	QueryHistory QueryKind = "HISTORY"
)

// Field names a required intent field that may be missing from a draft.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldDescription Field = "description"
	FieldRecipient   Field = "recipient"
)

// Intent is what the user asked for, possibly with required fields still
// missing. Implemented by *ExpenseIntent, *PaymentIntent, *QueryIntent and
// *ResetIntent.
type Intent interface {
	Kind() IntentKind
	Missing() []Field
}

// IsComplete reports whether every required field of the intent is present.
func IsComplete(i Intent) bool {
	return i != nil && len(i.Missing()) == 0
}

type ExpenseIntent struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description"`
	Payer       Member           `json:"payer"`
	Mode        SplitMode        `json:"mode"`
	// Participants holds mention tokens, resolved against the chat roster on
	// validation. Empty means everyone in the chat.
	Participants []string `json:"participants"`
}

func (e *ExpenseIntent) Kind() IntentKind { return KindExpense }

func (e *ExpenseIntent) Missing() []Field {
	var missing []Field
	if !positive(e.Amount) {
		missing = append(missing, FieldAmount)
	}
	if e.Description == "" {
		missing = append(missing, FieldDescription)
	}
	return missing
}

type PaymentIntent struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description"`
	Payer       Member           `json:"payer"`
	Recipient   string           `json:"recipient"` // mention token
}

func (p *PaymentIntent) Kind() IntentKind { return KindPayment }

func (p *PaymentIntent) Missing() []Field {
	var missing []Field
	if !positive(p.Amount) {
		missing = append(missing, FieldAmount)
	}
	if p.Recipient == "" {
		missing = append(missing, FieldRecipient)
	}
	return missing
}

type QueryIntent struct {
	Query   QueryKind `json:"query"`
	Subject string    `json:"subject,omitempty"` // mention token, empty for the whole chat
}

func (q *QueryIntent) Kind() IntentKind { return KindQuery }
func (q *QueryIntent) Missing() []Field { return nil }

type ResetIntent struct{}

func (r *ResetIntent) Kind() IntentKind { return KindReset }
func (r *ResetIntent) Missing() []Field { return nil }

func positive(d *decimal.Decimal) bool {
	return d != nil && d.IsPositive()
}
