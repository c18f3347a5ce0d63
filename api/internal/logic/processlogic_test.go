package logic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zeromicro/go-zero/core/syncx"

	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/oracle"
	"github.com/qx/ledgerbot/api/internal/store"
	"github.com/qx/ledgerbot/api/internal/svc"
	"github.com/qx/ledgerbot/api/internal/types"
)

const testChat int64 = -100

var (
	youID   = types.Identity{UserID: you, FirstName: "You", Username: "you"}
	aliceID = types.Identity{UserID: alice, FirstName: "Alice", Username: "alice"}
	bobID   = types.Identity{UserID: bob, FirstName: "Bob", Username: "bob"}
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeClassifier struct {
	result *oracle.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, oracle.Request) (*oracle.Classification, error) {
	f.calls++
	return f.result, f.err
}

func newTestContext(clock *fakeClock) *svc.ServiceContext {
	svcCtx := &svc.ServiceContext{
		Members:  store.NewMemoryMembers(),
		Log:      store.NewMemoryLog(),
		Contexts: store.NewMemoryContextStore(clock.Now),
		Locks:    syncx.NewLockedCalls(),
		Now:      clock.Now,
	}
	svcCtx.Config.Pending.TTL = 5 * time.Minute
	return svcCtx
}

func send(t *testing.T, svcCtx *svc.ServiceContext, from types.Identity, command, text string) *types.Reply {
	t.Helper()
	reply, err := NewProcessLogic(context.Background(), svcCtx).Handle(types.Input{
		ChatID:  testChat,
		Sender:  from,
		Command: command,
		Text:    text,
	})
	if err != nil {
		t.Fatalf("Handle(/%s %q) error = %v", command, text, err)
	}
	return reply
}

func joinAll(t *testing.T, svcCtx *svc.ServiceContext, ids ...types.Identity) {
	t.Helper()
	for _, id := range ids {
		if reply := send(t, svcCtx, id, CmdStart, ""); reply.Status != types.StatusOK {
			t.Fatalf("/start status = %s", reply.Status)
		}
	}
}

func readLog(t *testing.T, svcCtx *svc.ServiceContext) []model.Transaction {
	t.Helper()
	txs, err := svcCtx.Log.ReadAll(context.Background(), testChat)
	if err != nil {
		t.Fatal(err)
	}
	return txs
}

func TestProcessSplitExpense(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID, bobID)

	reply := send(t, svcCtx, youID, CmdSpent, "60 Sushi @Alice @Bob")
	if reply.Status != types.StatusOK {
		t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
	}

	txs := readLog(t, svcCtx)
	if len(txs) != 1 {
		t.Fatalf("log has %d transactions, want 1", len(txs))
	}
	tx := txs[0]
	if tx.Seq != 1 || tx.Payer != you || tx.Mode != model.SplitWith || !tx.Amount.Equal(d("60")) {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if !tx.Timestamp.Equal(clock.now) {
		t.Errorf("Timestamp = %s, want %s", tx.Timestamp, clock.now)
	}
	assertBalances(t, ComputeBalances(txs), map[int64]string{you: "40", alice: "-20", bob: "-20"})
}

func TestProcessContextCompletion(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID)

	reply := send(t, svcCtx, youID, CmdSpent, "Pizza with @alice")
	if reply.Status != types.StatusClarify || !reply.AwaitReply {
		t.Fatalf("got %+v, want a clarifying prompt", reply)
	}

	clock.now = clock.now.Add(time.Minute)
	reply = send(t, svcCtx, youID, "", "50")
	if reply.Status != types.StatusOK {
		t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
	}

	txs := readLog(t, svcCtx)
	if len(txs) != 1 {
		t.Fatalf("log has %d transactions, want 1", len(txs))
	}
	if !txs[0].Amount.Equal(d("50")) || txs[0].Description != "Pizza" {
		t.Errorf("unexpected transaction %+v", txs[0])
	}

	// consumed at most once
	reply = send(t, svcCtx, youID, "", "50")
	if reply.Status != types.StatusClarify || reply.AwaitReply {
		t.Errorf("second reply got %+v, want an ambiguity prompt", reply)
	}
	if n := len(readLog(t, svcCtx)); n != 1 {
		t.Errorf("log has %d transactions, want 1", n)
	}
}

func TestProcessContextCompletionByOtherMember(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID)

	send(t, svcCtx, youID, CmdPaid, "20")
	reply := send(t, svcCtx, aliceID, "", "@you")
	if reply.Status == types.StatusOK {
		t.Fatalf("another member completed the draft: %q", reply.Text)
	}

	reply = send(t, svcCtx, youID, "", "@alice")
	if reply.Status != types.StatusOK {
		t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
	}
	txs := readLog(t, svcCtx)
	if len(txs) != 1 || txs[0].Type != model.TxPayment || txs[0].Recipient() != alice {
		t.Errorf("unexpected log %+v", txs)
	}
}

func TestProcessExpiredContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID)

	send(t, svcCtx, youID, CmdSpent, "Pizza with @alice")
	clock.now = clock.now.Add(6 * time.Minute)

	reply := send(t, svcCtx, youID, "", "50")
	if reply.Status != types.StatusClarify || reply.AwaitReply {
		t.Errorf("got %+v, want the reply treated as a new ambiguous message", reply)
	}
	if n := len(readLog(t, svcCtx)); n != 0 {
		t.Errorf("log has %d transactions, want 0", n)
	}
}

func TestProcessSupersededContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID)

	send(t, svcCtx, youID, CmdSpent, "Pizza with @alice")
	if reply := send(t, svcCtx, youID, CmdLedger, ""); reply.Status != types.StatusOK {
		t.Fatalf("/ledger status = %s", reply.Status)
	}
	reply := send(t, svcCtx, youID, "", "50")
	if reply.Status != types.StatusClarify {
		t.Errorf("status = %s, want clarify", reply.Status)
	}
	if n := len(readLog(t, svcCtx)); n != 0 {
		t.Errorf("log has %d transactions, want 0", n)
	}
}

func TestProcessContextSupersededByNewRequest(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID, bobID)

	send(t, svcCtx, youID, CmdSpent, "Pizza with @alice")
	reply := send(t, svcCtx, youID, "", "paid 20 to @bob")
	if reply.Status != types.StatusOK {
		t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
	}
	txs := readLog(t, svcCtx)
	if len(txs) != 1 || txs[0].Type != model.TxPayment || txs[0].Recipient() != bob || !txs[0].Amount.Equal(d("20")) {
		t.Fatalf("unexpected log %+v", txs)
	}

	// the pizza draft is gone
	reply = send(t, svcCtx, youID, "", "50")
	if reply.Status != types.StatusClarify || reply.AwaitReply {
		t.Errorf("got %+v, want an ambiguity prompt", reply)
	}
	if n := len(readLog(t, svcCtx)); n != 1 {
		t.Errorf("log has %d transactions, want 1", n)
	}
}

func TestProcessRejections(t *testing.T) {
	tests := []struct {
		name     string
		members  []types.Identity
		command  string
		text     string
		contains string
	}{
		{
			name:     "degenerate split",
			members:  []types.Identity{youID},
			command:  CmdSpent,
			text:     "10 Coffee",
			contains: "⚠️",
		},
		{
			name:     "split only with yourself",
			members:  []types.Identity{youID, aliceID},
			command:  CmdSpent,
			text:     "10 Coffee with @you",
			contains: "⚠️",
		},
		{
			name:     "unknown member",
			members:  []types.Identity{youID, aliceID},
			command:  CmdSpent,
			text:     "10 Coffee @ghost",
			contains: "@ghost",
		},
		{
			name:     "pay yourself",
			members:  []types.Identity{youID, aliceID},
			command:  CmdPaid,
			text:     "10 @you",
			contains: "yourself",
		},
		{
			name:     "settle with yourself",
			members:  []types.Identity{youID, aliceID},
			command:  CmdSettleUp,
			text:     "@you",
			contains: "settle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
			svcCtx := newTestContext(clock)
			joinAll(t, svcCtx, tt.members...)

			reply := send(t, svcCtx, youID, tt.command, tt.text)
			if reply.Status != types.StatusRejected {
				t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
			}
			if !strings.Contains(reply.Text, tt.contains) {
				t.Errorf("text = %q, want it to contain %q", reply.Text, tt.contains)
			}
			if n := len(readLog(t, svcCtx)); n != 0 {
				t.Errorf("log has %d transactions, want 0", n)
			}
		})
	}
}

func TestProcessSettleAndReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svcCtx := newTestContext(clock)
	joinAll(t, svcCtx, youID, aliceID)

	send(t, svcCtx, aliceID, CmdSpent, "20 Lunch with @you")

	reply := send(t, svcCtx, youID, CmdSettleUp, "@alice")
	if !strings.Contains(reply.Text, "You owes Alice 10.00") || !strings.Contains(reply.Text, "/paid 10.00 @alice") {
		t.Errorf("settle reply = %q", reply.Text)
	}

	reply = send(t, svcCtx, youID, CmdMyBalance, "")
	if !strings.Contains(reply.Text, "You owes 10.00") {
		t.Errorf("balance reply = %q", reply.Text)
	}

	send(t, svcCtx, youID, CmdClearDebts, "")
	reply = send(t, svcCtx, youID, CmdLedger, "")
	if reply.Text != "✅ Everyone is settled up!" {
		t.Errorf("ledger after reset = %q", reply.Text)
	}

	reply = send(t, svcCtx, youID, CmdHistory, "")
	if !strings.Contains(reply.Text, "#2") || !strings.Contains(reply.Text, "You cleared all debts") || strings.Contains(reply.Text, "Lunch") {
		t.Errorf("history after reset = %q", reply.Text)
	}

	txs := readLog(t, svcCtx)
	if len(txs) != 2 || txs[1].Type != model.TxReset || txs[1].Seq != 2 {
		t.Errorf("unexpected log %+v", txs)
	}
}

func TestProcessOracle(t *testing.T) {
	amount := d("30")
	tests := []struct {
		name       string
		classifier *fakeClassifier
		text       string
		wantStatus types.Status
		wantText   string
		wantLog    int
	}{
		{
			name: "classified expense",
			classifier: &fakeClassifier{result: &oracle.Classification{
				Intent:      oracle.LabelExpense,
				Amount:      &amount,
				Description: "Taxi",
				Mode:        "WITH",
				Involved:    []string{"@alice"},
			}},
			text:       "shared a taxi with alice for 30",
			wantStatus: types.StatusOK,
			wantLog:    1,
		},
		{
			name: "unknown asks the oracle question",
			classifier: &fakeClassifier{result: &oracle.Classification{
				Intent:   oracle.LabelUnknown,
				Question: "Was that an expense?",
			}},
			text:       "hmm",
			wantStatus: types.StatusClarify,
			wantText:   "Was that an expense?",
		},
		{
			name:       "falls back to the parser",
			classifier: &fakeClassifier{err: errors.New("deadline exceeded")},
			text:       "I spent 30 on taxi with @alice",
			wantStatus: types.StatusOK,
			wantLog:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
			svcCtx := newTestContext(clock)
			svcCtx.Oracle = tt.classifier
			joinAll(t, svcCtx, youID, aliceID)

			reply := send(t, svcCtx, youID, "", tt.text)
			if reply.Status != tt.wantStatus {
				t.Fatalf("status = %s, text = %q", reply.Status, reply.Text)
			}
			if tt.wantText != "" && reply.Text != tt.wantText {
				t.Errorf("text = %q, want %q", reply.Text, tt.wantText)
			}
			if tt.classifier.calls != 1 {
				t.Errorf("classifier called %d times, want 1", tt.classifier.calls)
			}
			if n := len(readLog(t, svcCtx)); n != tt.wantLog {
				t.Errorf("log has %d transactions, want %d", n, tt.wantLog)
			}
		})
	}
}
