package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/qx/ledgerbot/api/internal/model"
)

// Classifier turns free text into a best-effort, possibly partial intent.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Classification, error)
}

type Request struct {
	Text   string
	Sender model.Member
	Roster []model.Member
}

// Intent labels returned by the oracle.
const (
	LabelExpense = "EXPENSE"
	LabelPayment = "PAYMENT"
	LabelBalance = "BALANCE"
	LabelSettle  = "SETTLE_INTENT"
	LabelReset   = "RESET"
	LabelUnknown = "UNKNOWN"
)

// Classification is the oracle's JSON answer.
type Classification struct {
	Intent      string           `json:"intent"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
	Mode        string           `json:"mode"`     // "WITH" or "FOR" for expenses
	Involved    []string         `json:"involved"` // handles, or ["ALL"]
	TargetUser  string           `json:"target_user"`
	Question    string           `json:"reply_message"`
}
