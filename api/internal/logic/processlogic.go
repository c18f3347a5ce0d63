package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/svc"
	"github.com/qx/ledgerbot/api/internal/types"
)

const defaultPendingTTL = 5 * time.Minute

// ProcessLogic handles one inbound message end to end: registration, context
// completion, extraction, validation, append and rendering.
type ProcessLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewProcessLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ProcessLogic {
	return &ProcessLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Handle processes in and returns the reply. Messages of the same chat are
// serialized. A non-nil error means an infrastructure failure, domain
// failures come back as replies.
func (l *ProcessLogic) Handle(in types.Input) (*types.Reply, error) {
	v, err := l.svcCtx.Locks.Do(strconv.FormatInt(in.ChatID, 10), func() (any, error) {
		return l.handle(in)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Reply), nil
}

func (l *ProcessLogic) handle(in types.Input) (*types.Reply, error) {
	registry := NewRegistryLogic(l.ctx, l.svcCtx)
	sender, err := registry.Register(in.ChatID, in.Sender)
	if err != nil {
		return nil, err
	}

	pending, err := l.takePending(in.ChatID, sender.ID)
	if err != nil {
		return nil, err
	}

	switch in.Command {
	case CmdStart:
		l.discard(pending)
		return &types.Reply{Status: types.StatusOK, Text: WelcomeText(sender)}, nil
	case CmdHelp:
		l.discard(pending)
		return &types.Reply{Status: types.StatusOK, Text: HelpText}, nil
	}

	roster, err := registry.Roster(in.ChatID)
	if err != nil {
		return nil, err
	}

	intent, completed, err := NewExtractLogic(l.ctx, l.svcCtx).Extract(in, sender, roster, pending)
	if completed {
		metrics.PendingContexts.WithLabelValues("resolved").Inc()
	} else {
		l.discard(pending)
	}
	var ambiguous *model.AmbiguousIntentError
	if errors.As(err, &ambiguous) {
		metrics.Intents.WithLabelValues("UNKNOWN", string(types.StatusClarify)).Inc()
		return &types.Reply{Status: types.StatusClarify, Text: RenderAmbiguous(ambiguous)}, nil
	}
	if err != nil {
		return nil, err
	}

	reply, err := l.resolve(intent, sender, roster)
	if err != nil {
		return nil, err
	}
	metrics.Intents.WithLabelValues(string(intent.Kind()), string(reply.Status)).Inc()
	return reply, nil
}

func (l *ProcessLogic) resolve(intent model.Intent, sender model.Member, roster *Roster) (*types.Reply, error) {
	if !model.IsComplete(intent) {
		if err := l.putPending(roster.ChatID, sender.ID, intent); err != nil {
			return nil, err
		}
		return &types.Reply{Status: types.StatusClarify, Text: RenderMissing(intent), AwaitReply: true}, nil
	}

	if q, ok := intent.(*model.QueryIntent); ok {
		return l.query(q, sender, roster)
	}

	validator := NewValidateLogic(l.ctx, l.svcCtx)
	tx, err := validator.Validate(intent, sender, roster)
	var invalid *model.ValidationError
	if errors.As(err, &invalid) {
		text := "❌ " + invalid.Reason
		if invalid.Warning {
			text = "⚠️ " + invalid.Reason
		}
		return &types.Reply{Status: types.StatusRejected, Text: text}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := validator.Commit(tx); err != nil {
		return nil, err
	}
	return &types.Reply{Status: types.StatusOK, Text: RenderTransaction(tx, roster)}, nil
}

func (l *ProcessLogic) query(q *model.QueryIntent, sender model.Member, roster *Roster) (*types.Reply, error) {
	txs, err := l.svcCtx.Log.ReadAll(l.ctx, roster.ChatID)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if q.Query == model.QueryHistory {
		return &types.Reply{Status: types.StatusOK, Text: RenderHistory(txs, roster, l.svcCtx.Config.History.Limit)}, nil
	}

	var subject *model.Member
	if q.Subject != "" {
		m, err := roster.Resolve(q.Subject)
		if err != nil {
			return &types.Reply{Status: types.StatusRejected, Text: "❌ " + model.UnknownMembersError([]string{q.Subject}).Reason}, nil
		}
		subject = &m
	}

	balances := ComputeBalances(txs)
	var text string
	switch {
	case q.Query == model.QuerySettle && subject == nil:
		text = RenderPlan(SettlePlan(balances), roster)
	case q.Query == model.QuerySettle && subject.ID == sender.ID:
		return &types.Reply{Status: types.StatusRejected, Text: "❌ Mention the member you want to settle with."}, nil
	case q.Query == model.QuerySettle:
		text = RenderSettlement(SettleSuggestion(sender.ID, subject.ID, balances), roster)
	case subject != nil:
		text = RenderMemberBalance(subject.ID, balances, roster)
	default:
		text = RenderBalances(balances, roster)
	}
	return &types.Reply{Status: types.StatusOK, Text: text}, nil
}

// takePending consumes the sender's pending draft. An expired draft is
// treated as absent.
func (l *ProcessLogic) takePending(chatID, userID int64) (*model.PendingContext, error) {
	if n, err := l.svcCtx.Contexts.ExpireOlderThan(l.ctx, l.svcCtx.Now()); err != nil {
		logx.WithContext(l.ctx).Errorf("expire pending contexts: %v", err)
	} else if n > 0 {
		metrics.PendingContexts.WithLabelValues("expired").Add(float64(n))
	}

	pending, err := l.svcCtx.Contexts.Take(l.ctx, chatID, userID)
	if errors.Is(err, model.ErrStaleContext) {
		metrics.PendingContexts.WithLabelValues("expired").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take pending context: %w", err)
	}
	return pending, nil
}

func (l *ProcessLogic) putPending(chatID, userID int64, draft model.Intent) error {
	ttl := l.svcCtx.Config.Pending.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	now := l.svcCtx.Now()
	err := l.svcCtx.Contexts.Put(l.ctx, &model.PendingContext{
		ChatID:    chatID,
		UserID:    userID,
		Draft:     draft,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("store pending context: %w", err)
	}
	metrics.PendingContexts.WithLabelValues("stored").Inc()
	return nil
}

func (l *ProcessLogic) discard(pending *model.PendingContext) {
	if pending == nil {
		return
	}
	metrics.PendingContexts.WithLabelValues("superseded").Inc()
	logx.WithContext(l.ctx).Debugf("pending %s draft of user %d superseded", pending.Draft.Kind(), pending.UserID)
}
