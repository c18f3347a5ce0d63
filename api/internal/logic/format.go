package logic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/qx/ledgerbot/api/internal/model"
)

var cent = decimal.New(1, -2)

// settled reports whether v is below one cent in absolute value.
func settled(v decimal.Decimal) bool {
	return v.Abs().LessThan(cent)
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// RenderBalances lists every member with an open balance.
func RenderBalances(b Balances, roster *Roster) string {
	var sb strings.Builder
	for _, id := range b.IDs() {
		v := b[id]
		if settled(v) {
			continue
		}
		if sb.Len() == 0 {
			sb.WriteString("📒 Balances:\n")
		}
		if v.IsPositive() {
			fmt.Fprintf(&sb, "%s is owed %s\n", roster.Name(id), money(v))
		} else {
			fmt.Fprintf(&sb, "%s owes %s\n", roster.Name(id), money(v.Neg()))
		}
	}
	if sb.Len() == 0 {
		return "✅ Everyone is settled up!"
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderMemberBalance describes one member's net balance.
func RenderMemberBalance(id int64, b Balances, roster *Roster) string {
	v := b.Of(id)
	switch {
	case settled(v):
		return fmt.Sprintf("✅ %s is settled up.", roster.Name(id))
	case v.IsPositive():
		return fmt.Sprintf("💰 %s is owed %s in total.", roster.Name(id), money(v))
	default:
		return fmt.Sprintf("💸 %s owes %s in total.", roster.Name(id), money(v.Neg()))
	}
}

// RenderSettlement phrases a single suggestion, with a ready to send
// payment command when a transfer is needed.
func RenderSettlement(s Settlement, roster *Roster) string {
	if !s.Needed {
		return fmt.Sprintf("No transfer needed between %s and %s.", roster.Name(s.From), roster.Name(s.To))
	}
	return fmt.Sprintf("%s owes %s %s\nTo record it: /paid %s %s",
		roster.Name(s.From), roster.Name(s.To), money(s.Amount),
		money(s.Amount), roster.Tag(s.To))
}

// RenderPlan lists the transfers that clear the whole chat.
func RenderPlan(plan []Settlement, roster *Roster) string {
	if len(plan) == 0 {
		return "✅ Everyone is settled up!"
	}
	var sb strings.Builder
	sb.WriteString("🤝 To settle up:\n")
	for _, s := range plan {
		fmt.Fprintf(&sb, "%s owes %s %s\n", roster.Name(s.From), roster.Name(s.To), money(s.Amount))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderTransaction confirms an appended transaction.
func RenderTransaction(tx *model.Transaction, roster *Roster) string {
	switch tx.Type {
	case model.TxReset:
		return "🧹 All debts cleared. Balances start from zero."
	case model.TxPayment:
		return fmt.Sprintf("✅ Recorded: %s paid %s %s (%s)",
			roster.Name(tx.Payer), roster.Name(tx.Recipient()), money(tx.Amount), tx.Description)
	}

	names := make([]string, len(tx.Counterparties))
	for i, id := range tx.Counterparties {
		names[i] = roster.Name(id)
	}
	if tx.Mode == model.PaidFor {
		return fmt.Sprintf("✅ Recorded: %s paid %s for %s\n%s owe %s each",
			roster.Name(tx.Payer), money(tx.Amount), tx.Description,
			strings.Join(names, ", "), money(tx.Amount))
	}
	share := SplitShare(tx.Amount, len(tx.Counterparties))
	return fmt.Sprintf("✅ Recorded: %s paid %s for %s\nSplit %d ways with %s, %s each",
		roster.Name(tx.Payer), money(tx.Amount), tx.Description,
		len(tx.Counterparties)+1, strings.Join(names, ", "), money(share))
}

// RenderHistory lists the most recent transactions starting at the last
// reset, newest last.
func RenderHistory(txs []model.Transaction, roster *Roster, limit int) string {
	if since := SinceLastReset(txs); len(since) < len(txs) {
		txs = txs[len(txs)-len(since)-1:]
	}
	if len(txs) == 0 {
		return "No transactions yet."
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	var sb strings.Builder
	sb.WriteString("🧾 Recent transactions:\n")
	for _, tx := range txs {
		when := tx.Timestamp.Format("01-02 15:04")
		switch tx.Type {
		case model.TxPayment:
			fmt.Fprintf(&sb, "#%d %s %s → %s %s\n", tx.Seq, when,
				roster.Name(tx.Payer), roster.Name(tx.Recipient()), money(tx.Amount))
		case model.TxExpense:
			fmt.Fprintf(&sb, "#%d %s %s paid %s for %s\n", tx.Seq, when,
				roster.Name(tx.Payer), money(tx.Amount), tx.Description)
		case model.TxReset:
			fmt.Fprintf(&sb, "#%d %s 🧹 %s cleared all debts\n", tx.Seq, when, roster.Name(tx.RecordedBy))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderMissing asks for the first missing field of a draft.
func RenderMissing(intent model.Intent) string {
	missing := intent.Missing()
	if len(missing) == 0 {
		return ""
	}
	switch missing[0] {
	case model.FieldAmount:
		if e, ok := intent.(*model.ExpenseIntent); ok && e.Description != "" {
			return fmt.Sprintf("How much was %s? Reply with the amount.", e.Description)
		}
		return "How much? Reply with the amount."
	case model.FieldDescription:
		return "What was it for? Reply with a short description."
	case model.FieldRecipient:
		return "Who did you pay? Reply with their @username."
	}
	return fmt.Sprintf("Missing %s.", missing[0])
}

// RenderAmbiguous turns an unclassified message into a question.
func RenderAmbiguous(err *model.AmbiguousIntentError) string {
	if err.Question != "" {
		return err.Question
	}
	return "🤔 I couldn't tell if that was an expense, a payment or a question. Try /spent, /paid or /help."
}

func WelcomeText(m model.Member) string {
	return fmt.Sprintf("👋 Hi %s, you are in the ledger now. Send /help to see what I can do.", m.Name())
}

const HelpText = `📒 Shared expenses

/spent <amount> <description> [@mentions] - you paid and split it
   "with @a @b" splits between you and them, "for @a" charges each the full amount
   no mentions splits with everyone
/paid <amount> @user - you paid someone back
/mybalance - your balance
/settleup [@user] - what to transfer to settle
/ledger - everyone's balance
/history - recent transactions
/clear_debts - start from zero

You can also just write it, e.g. "I spent 60 on sushi with @alice and @bob".`
