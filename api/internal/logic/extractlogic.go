package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/oracle"
	"github.com/qx/ledgerbot/api/internal/svc"
	"github.com/qx/ledgerbot/api/internal/types"
)

// ExtractLogic turns a message, plus the sender's pending draft if any, into
// an intent. The result may still be incomplete.
type ExtractLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewExtractLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ExtractLogic {
	return &ExtractLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Extract returns the intent for in. When pending is set and the message
// supplies a missing field, the completed draft is returned and completed is
// true. Otherwise the pending draft is dropped and the message is read fresh.
func (l *ExtractLogic) Extract(in types.Input, sender model.Member, roster *Roster, pending *model.PendingContext) (intent model.Intent, completed bool, err error) {
	if pending != nil && in.Command == "" {
		if merged, ok := completeDraft(pending.Draft, in.Text, sender); ok {
			return merged, true, nil
		}
	}

	if in.Command != "" {
		intent, err = ParseCommand(in.Command, in.Text, sender)
		return intent, false, err
	}

	if l.svcCtx.Oracle == nil {
		intent, err = ParseText(in.Text, sender)
		return intent, false, err
	}

	result, err := l.svcCtx.Oracle.Classify(l.ctx, oracle.Request{
		Text:   in.Text,
		Sender: sender,
		Roster: roster.Members(),
	})
	if err != nil {
		unavailable := &model.OracleUnavailableError{Err: err}
		metrics.OracleFallbacks.Inc()
		logx.WithContext(l.ctx).Errorf("%v, falling back to the command parser", unavailable)
		intent, err = ParseText(in.Text, sender)
		return intent, false, err
	}
	intent, err = FromClassification(result, in.Text, sender)
	return intent, false, err
}

// FromClassification maps an oracle answer onto an intent.
func FromClassification(c *oracle.Classification, text string, sender model.Member) (model.Intent, error) {
	var involved []string
	for _, who := range c.Involved {
		who = strings.TrimSpace(who)
		if who == "" || strings.EqualFold(who, "ALL") {
			continue
		}
		involved = append(involved, who)
	}

	switch c.Intent {
	case oracle.LabelExpense:
		mode := model.SplitWith
		if strings.EqualFold(c.Mode, "FOR") {
			mode = model.PaidFor
		}
		return &model.ExpenseIntent{
			Amount:       c.Amount,
			Description:  strings.TrimSpace(c.Description),
			Payer:        sender,
			Mode:         mode,
			Participants: involved,
		}, nil
	case oracle.LabelPayment:
		recipient := c.TargetUser
		if recipient == "" {
			recipient = first(involved)
		}
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = defaultPaymentDescription
		}
		return &model.PaymentIntent{
			Amount:      c.Amount,
			Description: desc,
			Payer:       sender,
			Recipient:   recipient,
		}, nil
	case oracle.LabelBalance:
		return &model.QueryIntent{Query: model.QueryBalance, Subject: c.TargetUser}, nil
	case oracle.LabelSettle:
		return &model.QueryIntent{Query: model.QuerySettle, Subject: c.TargetUser}, nil
	case oracle.LabelReset:
		return &model.ResetIntent{}, nil
	}
	return nil, &model.AmbiguousIntentError{Text: text, Question: c.Question}
}

// completeDraft fills the draft's missing fields from a follow-up reply.
// Only bare answers are merged: an amount, mentions or plain description
// text. It reports false when the reply fills nothing or reads as a request
// of its own.
func completeDraft(draft model.Intent, reply string, sender model.Member) (model.Intent, bool) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, false
	}
	if _, err := ParseText(reply, sender); err == nil {
		return nil, false
	}
	s := scan(reply)
	missing := make(map[model.Field]bool)
	for _, f := range draft.Missing() {
		missing[f] = true
	}

	switch d := draft.(type) {
	case *model.ExpenseIntent:
		cp := *d
		cp.Participants = append([]string(nil), d.Participants...)
		filled := false
		if missing[model.FieldAmount] && s.amount != nil {
			cp.Amount = s.amount
			filled = true
		}
		if missing[model.FieldDescription] && s.description() != "" {
			cp.Description = s.description()
			filled = true
		}
		if filled && len(s.mentions) > 0 {
			cp.Participants = append(cp.Participants, s.mentions...)
		}
		return &cp, filled
	case *model.PaymentIntent:
		cp := *d
		filled := false
		if missing[model.FieldAmount] && s.amount != nil {
			cp.Amount = s.amount
			filled = true
		}
		if missing[model.FieldRecipient] && len(s.mentions) > 0 {
			cp.Recipient = s.mentions[0]
			filled = true
		}
		return &cp, filled
	}
	return nil, false
}
