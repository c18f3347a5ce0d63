package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/svc"
)

// ValidateLogic turns complete intents into transactions and appends them to
// the chat log.
type ValidateLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewValidateLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ValidateLogic {
	return &ValidateLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Validate checks intent against the roster and builds the transaction. It
// does not touch the log. Rule violations are returned as *model.ValidationError.
func (l *ValidateLogic) Validate(intent model.Intent, sender model.Member, roster *Roster) (*model.Transaction, error) {
	tx := &model.Transaction{
		ChatID:     roster.ChatID,
		RecordedBy: sender.ID,
	}

	switch in := intent.(type) {
	case *model.ResetIntent:
		tx.Type = model.TxReset
	case *model.ExpenseIntent:
		if !model.IsComplete(in) {
			return nil, model.NewValidationError("Missing %v.", in.Missing())
		}
		payer, err := registered(roster, in.Payer)
		if err != nil {
			return nil, err
		}
		participants, err := resolveParticipants(roster, payer.ID, in.Participants)
		if err != nil {
			return nil, err
		}
		if len(participants) == 0 {
			if in.Mode == model.PaidFor {
				return nil, model.NewValidationError("Nobody to charge for %q. Mention who you paid for.", in.Description)
			}
			return nil, &model.ValidationError{
				Reason:  fmt.Sprintf("Nobody to split %q with, so nothing was recorded. Mention at least one other member.", in.Description),
				Warning: true,
			}
		}
		tx.Type = model.TxExpense
		tx.Mode = in.Mode
		tx.Payer = payer.ID
		tx.Counterparties = participants
		tx.Amount = in.Amount.Round(2)
		tx.Description = in.Description
	case *model.PaymentIntent:
		if !model.IsComplete(in) {
			return nil, model.NewValidationError("Missing %v.", in.Missing())
		}
		payer, err := registered(roster, in.Payer)
		if err != nil {
			return nil, err
		}
		recipient, err := roster.Resolve(in.Recipient)
		if err != nil {
			return nil, model.UnknownMembersError([]string{in.Recipient})
		}
		if recipient.ID == payer.ID {
			return nil, model.NewValidationError("You can't pay yourself.")
		}
		tx.Type = model.TxPayment
		tx.Payer = payer.ID
		tx.Counterparties = []int64{recipient.ID}
		tx.Amount = in.Amount.Round(2)
		tx.Description = in.Description
	default:
		return nil, fmt.Errorf("intent %T is not a transaction", intent)
	}

	if tx.Type != model.TxReset && !tx.Amount.IsPositive() {
		return nil, model.NewValidationError("The amount must be greater than zero.")
	}
	return tx, nil
}

// Commit stamps tx and appends it. The log assigns the sequence number.
func (l *ValidateLogic) Commit(tx *model.Transaction) error {
	tx.ID = uuid.New()
	tx.Timestamp = l.svcCtx.Now().UTC().Truncate(time.Second)

	seq, err := l.svcCtx.Log.Append(l.ctx, tx)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	metrics.TransactionsAppended.WithLabelValues(string(tx.Type)).Inc()
	logx.WithContext(l.ctx).Infow("transaction appended",
		logx.Field("chat_id", tx.ChatID),
		logx.Field("seq_no", seq),
		logx.Field("type", tx.Type),
		logx.Field("amount", tx.Amount.StringFixed(2)))
	return nil
}

func registered(roster *Roster, m model.Member) (model.Member, error) {
	if found, ok := roster.Get(m.ID); ok {
		return found, nil
	}
	return model.Member{}, model.NewValidationError("%s is not registered here. Send /start first.", m.Tag())
}

// resolveParticipants maps mention tokens to member ids. The payer and
// repeated mentions are dropped. No tokens means every member but the payer.
func resolveParticipants(roster *Roster, payerID int64, tokens []string) ([]int64, error) {
	var ids []int64
	if len(tokens) == 0 {
		for _, m := range roster.Members() {
			if m.ID != payerID {
				ids = append(ids, m.ID)
			}
		}
		return ids, nil
	}

	seen := map[int64]bool{payerID: true}
	var unknown []string
	for _, token := range tokens {
		m, err := roster.Resolve(token)
		if err != nil {
			unknown = append(unknown, token)
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		ids = append(ids, m.ID)
	}
	if len(unknown) > 0 {
		return nil, model.UnknownMembersError(unknown)
	}
	return ids, nil
}
