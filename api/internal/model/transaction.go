package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxExpense TxType = "EXPENSE"
	TxPayment TxType = "PAYMENT"
	TxReset   TxType = "RESET"
)

// Transaction is one immutable entry of a chat's append-only log
type Transaction struct {
	ID     uuid.UUID `json:"id"`      // unique identifier
	Seq    int64     `json:"seq_no"`  // position in the chat log, assigned on append
	ChatID int64     `json:"chat_id"` // chat the entry belongs to
	Type   TxType    `json:"type"`
	Mode   SplitMode `json:"mode,omitempty"` // expenses only
	Payer  int64     `json:"payer,omitempty"`
	// Counterparties are the expense participants, or the single payment
	// recipient. Empty for a reset.
	Counterparties []int64         `json:"counterparties,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	RecordedBy     int64           `json:"recorded_by"` // who sent the message
	Timestamp      time.Time       `json:"timestamp"`
}

// Recipient returns the payment recipient, or 0 for other types.
func (t Transaction) Recipient() int64 {
	if t.Type != TxPayment || len(t.Counterparties) == 0 {
		return 0
	}
	return t.Counterparties[0]
}
