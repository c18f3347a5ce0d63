package logic

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/qx/ledgerbot/api/internal/model"
)

// Balances maps member ids to net balances. Positive means the member is
// owed money, negative means the member owes.
type Balances map[int64]decimal.Decimal

// Of returns the balance of id, zero when absent.
func (b Balances) Of(id int64) decimal.Decimal {
	return b[id]
}

// Sum adds up every balance. It is zero for any log without a reset.
func (b Balances) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range b {
		sum = sum.Add(v)
	}
	return sum
}

// IDs returns the member ids present in b, ascending.
func (b Balances) IDs() []int64 {
	ids := make([]int64, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SinceLastReset returns the transactions after the last reset, or txs when
// there is none.
func SinceLastReset(txs []model.Transaction) []model.Transaction {
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Type == model.TxReset {
			return txs[i+1:]
		}
	}
	return txs
}

// ComputeBalances replays txs in order from the last reset. The result only
// depends on the sequence it is given.
func ComputeBalances(txs []model.Transaction) Balances {
	balances := make(Balances)
	add := func(id int64, d decimal.Decimal) {
		balances[id] = balances[id].Add(d)
	}

	for _, tx := range SinceLastReset(txs) {
		switch tx.Type {
		case model.TxExpense:
			n := int64(len(tx.Counterparties))
			if n == 0 {
				continue
			}
			switch tx.Mode {
			case model.PaidFor:
				add(tx.Payer, tx.Amount.Mul(decimal.NewFromInt(n)))
				for _, p := range tx.Counterparties {
					add(p, tx.Amount.Neg())
				}
			default:
				// the payer keeps the rounding remainder of an uneven split
				share := SplitShare(tx.Amount, len(tx.Counterparties))
				add(tx.Payer, share.Mul(decimal.NewFromInt(n)))
				for _, p := range tx.Counterparties {
					add(p, share.Neg())
				}
			}
		case model.TxPayment:
			add(tx.Payer, tx.Amount)
			add(tx.Recipient(), tx.Amount.Neg())
		}
	}
	return balances
}

// SplitShare is each person's share when amount is split between the payer
// and the given number of participants, rounded half up to cents.
func SplitShare(amount decimal.Decimal, participants int) decimal.Decimal {
	return amount.DivRound(decimal.NewFromInt(int64(participants)+1), 2)
}

// Settlement is a transfer From owes To. Needed is false when no transfer
// is required between the two members.
type Settlement struct {
	From   int64
	To     int64
	Amount decimal.Decimal
	Needed bool
}

// SettleSuggestion tells how much flows between a and b given their
// balances. A transfer is only needed when their signs are opposite.
func SettleSuggestion(a, b int64, balances Balances) Settlement {
	ba, bb := balances.Of(a), balances.Of(b)
	if ba.Sign() == 0 || bb.Sign() == 0 || ba.Sign() == bb.Sign() {
		return Settlement{From: a, To: b}
	}
	amount := decimal.Min(ba.Abs(), bb.Abs())
	if ba.IsNegative() {
		return Settlement{From: a, To: b, Amount: amount, Needed: true}
	}
	return Settlement{From: b, To: a, Amount: amount, Needed: true}
}

// SettlePlan pairs the largest debtors with the largest creditors until
// every balance is cleared.
func SettlePlan(balances Balances) []Settlement {
	type bal struct {
		id  int64
		net decimal.Decimal
	}
	var pos, neg []bal
	for _, id := range balances.IDs() {
		v := balances[id].Round(2)
		if v.IsPositive() {
			pos = append(pos, bal{id: id, net: v})
		} else if v.IsNegative() {
			neg = append(neg, bal{id: id, net: v.Neg()})
		}
	}
	byNet := func(s []bal) func(i, j int) bool {
		return func(i, j int) bool {
			if c := s[i].net.Cmp(s[j].net); c != 0 {
				return c > 0
			}
			return s[i].id < s[j].id
		}
	}
	sort.SliceStable(pos, byNet(pos))
	sort.SliceStable(neg, byNet(neg))

	var plan []Settlement
	i, j := 0, 0
	for i < len(pos) && j < len(neg) {
		c, d := pos[i], neg[j]
		amt := decimal.Min(c.net, d.net)
		if amt.IsPositive() {
			plan = append(plan, Settlement{From: d.id, To: c.id, Amount: amt, Needed: true})
		}
		c.net = c.net.Sub(amt)
		d.net = d.net.Sub(amt)
		if c.net.Sign() <= 0 {
			i++
		} else {
			pos[i] = c
		}
		if d.net.Sign() <= 0 {
			j++
		} else {
			neg[j] = d
		}
	}
	return plan
}
