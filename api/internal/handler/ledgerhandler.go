package handler

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/qx/ledgerbot/api/internal/logic"
	"github.com/qx/ledgerbot/api/internal/metrics"
	"github.com/qx/ledgerbot/api/internal/svc"
	"github.com/qx/ledgerbot/api/internal/types"
)

const failureText = "⚠️ Something went wrong, please try again."

// Sender is the part of the bot API the handler talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Processor handles one normalized message.
type Processor interface {
	Handle(in types.Input) (*types.Reply, error)
}

type LedgerHandler struct {
	svcCtx  *svc.ServiceContext
	sender  Sender
	botName string
	process func(ctx context.Context) Processor
}

func NewLedgerHandler(svcCtx *svc.ServiceContext, sender Sender, botName string) *LedgerHandler {
	return &LedgerHandler{
		svcCtx:  svcCtx,
		sender:  sender,
		botName: botName,
		process: func(ctx context.Context) Processor {
			return logic.NewProcessLogic(ctx, svcCtx)
		},
	}
}

func (h *LedgerHandler) HandleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		metrics.UpdatesReceived.WithLabelValues("ignored").Inc()
		return
	}
	message := update.Message

	in, ok := ToInput(message, h.botName)
	if !ok {
		metrics.UpdatesReceived.WithLabelValues("ignored").Inc()
		return
	}
	if in.Command != "" {
		metrics.UpdatesReceived.WithLabelValues("command").Inc()
	} else {
		metrics.UpdatesReceived.WithLabelValues("text").Inc()
	}

	ctx := logx.ContextWithFields(context.Background(),
		logx.Field("chat_id", in.ChatID),
		logx.Field("user_id", in.Sender.UserID))
	logger := logx.WithContext(ctx)
	logger.Debugf("message received: command=%q text=%q", in.Command, in.Text)

	// the oracle round trip can take seconds
	if in.Command == "" && h.svcCtx != nil && h.svcCtx.Oracle != nil {
		if _, err := h.sender.Request(tgbotapi.NewChatAction(in.ChatID, tgbotapi.ChatTyping)); err != nil {
			logger.Debugf("send typing action: %v", err)
		}
	}

	reply, err := h.process(ctx).Handle(in)
	if err != nil {
		logger.Errorf("handle message: %v", err)
		reply = &types.Reply{Status: types.StatusError, Text: failureText}
	}

	msg := tgbotapi.NewMessage(in.ChatID, reply.Text)
	msg.ReplyToMessageID = message.MessageID
	if reply.AwaitReply {
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	}
	if _, err := h.sender.Send(msg); err != nil {
		logger.Errorf("send reply: %v", err)
		return
	}
	logger.Infow("message handled", logx.Field("status", reply.Status))
}

// ToInput normalizes a Telegram message. It reports false for messages the
// bot should not answer: other bots, commands for other bots, and group
// chatter that neither mentions nor replies to the bot.
func ToInput(message *tgbotapi.Message, botName string) (types.Input, bool) {
	if message.From == nil || message.From.IsBot || message.Chat == nil {
		return types.Input{}, false
	}

	in := types.Input{
		ChatID:    message.Chat.ID,
		ChatTitle: message.Chat.Title,
		Sender: types.Identity{
			UserID:    message.From.ID,
			FirstName: message.From.FirstName,
			Username:  message.From.UserName,
			IsBot:     message.From.IsBot,
		},
	}
	text := rewriteTextMentions(message.Text, message.Entities)

	if message.IsCommand() {
		name, target, _ := strings.Cut(message.CommandWithAt(), "@")
		if target != "" && !strings.EqualFold(target, botName) {
			return types.Input{}, false
		}
		in.Command = strings.ToLower(name)
		if i := strings.IndexAny(text, " \n\t"); i >= 0 {
			in.Text = strings.TrimSpace(text[i:])
		}
		return in, true
	}

	addressed := message.Chat.IsPrivate()
	if r := message.ReplyToMessage; r != nil && r.From != nil && botName != "" && strings.EqualFold(r.From.UserName, botName) {
		addressed = true
	}
	if botName != "" {
		if stripped, found := stripMention(text, botName); found {
			text = stripped
			addressed = true
		}
	}
	if !addressed {
		return types.Input{}, false
	}
	in.Text = strings.TrimSpace(text)
	return in, in.Text != ""
}

func stripMention(text, botName string) (string, bool) {
	lower := strings.ToLower(text)
	mention := "@" + strings.ToLower(botName)
	i := strings.Index(lower, mention)
	if i < 0 {
		return text, false
	}
	return strings.Join(strings.Fields(text[:i]+" "+text[i+len(mention):]), " "), true
}

// rewriteTextMentions replaces mentions of users without a username with an
// @<user id> token. Entity offsets count UTF-16 code units.
func rewriteTextMentions(text string, entities []tgbotapi.MessageEntity) string {
	var mentions []tgbotapi.MessageEntity
	for _, e := range entities {
		if e.Type == "text_mention" && e.User != nil {
			mentions = append(mentions, e)
		}
	}
	if len(mentions) == 0 {
		return text
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].Offset > mentions[j].Offset })

	units := utf16.Encode([]rune(text))
	for _, e := range mentions {
		end := e.Offset + e.Length
		if e.Offset < 0 || end > len(units) {
			continue
		}
		token := utf16.Encode([]rune("@" + strconv.FormatInt(e.User.ID, 10)))
		rewritten := make([]uint16, 0, len(units)-e.Length+len(token))
		rewritten = append(rewritten, units[:e.Offset]...)
		rewritten = append(rewritten, token...)
		rewritten = append(rewritten, units[end:]...)
		units = rewritten
	}
	return string(utf16.Decode(units))
}
