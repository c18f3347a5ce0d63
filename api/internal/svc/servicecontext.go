package svc

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/syncx"

	"github.com/qx/ledgerbot/api/internal/config"
	"github.com/qx/ledgerbot/api/internal/oracle"
	"github.com/qx/ledgerbot/api/internal/store"
)

type ServiceContext struct {
	Config   config.Config
	Bot      *tgbotapi.BotAPI
	Redis    *redis.Redis    // nil when not configured
	Postgres *store.Postgres // nil when not configured

	Members  store.MemberStore
	Log      store.TransactionLog
	Contexts store.ContextStore
	Oracle   oracle.Classifier // nil when not configured

	// Locks serializes append-then-recompute per chat.
	Locks syncx.LockedCalls
	Now   func() time.Time
}

func NewServiceContext(c config.Config) *ServiceContext {
	bot, err := tgbotapi.NewBotAPI(c.Bot.Token)
	if err != nil {
		panic(err)
	}
	bot.Debug = c.Bot.Debug

	svcCtx := &ServiceContext{
		Config: c,
		Bot:    bot,
		Locks:  syncx.NewLockedCalls(),
		Now:    time.Now,
	}

	if c.UseRedis() {
		svcCtx.Redis = redis.MustNewRedis(c.Redis)
		svcCtx.Contexts = store.NewRedisContextStore(svcCtx.Redis, svcCtx.Now)
	} else {
		svcCtx.Contexts = store.NewMemoryContextStore(svcCtx.Now)
	}

	switch {
	case c.UsePostgres():
		pg, err := store.NewPostgres(context.Background(), c.Postgres.DataSource)
		if err != nil {
			panic(err)
		}
		if err := pg.RunMigrations(context.Background()); err != nil {
			panic(err)
		}
		svcCtx.Postgres = pg
		svcCtx.Log = store.NewPostgresLog(pg)
		svcCtx.Members = store.NewPostgresMembers(pg)
		logx.Info("transaction log: postgres")
	case c.UseRedis():
		svcCtx.Log = store.NewRedisLog(svcCtx.Redis)
		svcCtx.Members = store.NewRedisMembers(svcCtx.Redis)
		logx.Info("transaction log: redis")
	default:
		svcCtx.Log = store.NewMemoryLog()
		svcCtx.Members = store.NewMemoryMembers()
		logx.Info("transaction log: memory, balances are lost on restart")
	}

	if c.UseOracle() {
		svcCtx.Oracle = oracle.NewOpenAIClassifier(c.Oracle.ApiKey, c.Oracle.BaseURL, c.Oracle.Model, c.Oracle.Timeout)
	}

	return svcCtx
}

// Backends returns the connected stores that can be health checked.
func (s *ServiceContext) Backends() map[string]store.Pinger {
	backends := make(map[string]store.Pinger)
	if s.Postgres != nil {
		backends["postgres"] = s.Postgres
	}
	if p, ok := s.Contexts.(store.Pinger); ok {
		backends["redis"] = p
	}
	return backends
}

// Close releases backend connections.
func (s *ServiceContext) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}
