package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/qx/ledgerbot/api/internal/config"
	"github.com/qx/ledgerbot/api/internal/handler"
	"github.com/qx/ledgerbot/api/internal/logic"
	"github.com/qx/ledgerbot/api/internal/svc"
)

var configFile = flag.String("f", "etc/ledgerbot.yaml", "the config file")

func main() {
	flag.Parse()

	// .env is optional, real environment variables win
	_ = godotenv.Load()

	var c config.Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())
	logx.MustSetup(c.Log)
	defer logx.Close()

	ctx := svc.NewServiceContext(c)
	defer ctx.Close()

	commands := []tgbotapi.BotCommand{
		{Command: logic.CmdStart, Description: "Join the ledger of this chat"},
		{Command: logic.CmdHelp, Description: "Show help"},
		{Command: logic.CmdSpent, Description: "Record an expense: /spent 60 Sushi @alice"},
		{Command: logic.CmdPaid, Description: "Record a repayment: /paid 20 @bob"},
		{Command: logic.CmdMyBalance, Description: "Show your balance"},
		{Command: logic.CmdSettleUp, Description: "How to settle up, optionally with @user"},
		{Command: logic.CmdLedger, Description: "Show everyone's balance"},
		{Command: logic.CmdHistory, Description: "Show recent transactions"},
		{Command: logic.CmdClearDebts, Description: "Clear all debts"},
	}
	if _, err := ctx.Bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		logx.Errorf("set bot commands: %v", err)
	}

	me, err := ctx.Bot.GetMe()
	logx.Must(err)
	logx.Infof("bot started as @%s", me.UserName)

	var ops *http.Server
	if c.Ops.Addr != "" {
		ops = &http.Server{
			Addr:              c.Ops.Addr,
			Handler:           handler.NewOpsRouter(ctx.Backends()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		threading.GoSafe(func() {
			logx.Infof("ops server listening on %s", c.Ops.Addr)
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Errorf("ops server: %v", err)
			}
		})
	}

	h := handler.NewLedgerHandler(ctx, ctx.Bot, me.UserName)
	dispatcher := handler.NewDispatcher(c.Dispatch.Shards, h.HandleUpdate)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.Bot.PollTimeout
	updates := ctx.Bot.GetUpdatesChan(u)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			dispatcher.Dispatch(update)
		case s := <-sig:
			logx.Infof("received %s, shutting down", s)
			break loop
		}
	}

	ctx.Bot.StopReceivingUpdates()
	dispatcher.Stop()
	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logx.Errorf("ops server shutdown: %v", err)
		}
	}
}
