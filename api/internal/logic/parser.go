package logic

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/qx/ledgerbot/api/internal/model"
)

// Commands understood by the parser, without the slash.
const (
	CmdStart      = "start"
	CmdHelp       = "help"
	CmdSpent      = "spent"
	CmdPaid       = "paid"
	CmdMyBalance  = "mybalance"
	CmdSettleUp   = "settleup"
	CmdClearDebts = "clear_debts"
	CmdLedger     = "ledger"
	CmdHistory    = "history"
)

const defaultPaymentDescription = "Payment"

var amountPattern = regexp.MustCompile(`^[$€£]?(\d+(?:,\d{3})*(?:\.\d+)?|\.\d+)[$€£]?$`)

// ParseAmount reads a money token such as "50", "$12.5" or "1,200".
// The result is rounded to cents and must be positive.
func ParseAmount(token string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

var (
	leadingFiller = map[string]bool{
		"i": true, "spent": true, "spend": true, "bought": true, "buy": true,
		"paid": true, "pay": true, "repaid": true, "returned": true, "sent": true,
		"gave": true, "on": true, "for": true, "to": true,
	}
	mentionGlue = map[string]bool{
		"with": true, "for": true, "to": true, "and": true, "&": true,
	}
	paymentVerbs = map[string]bool{
		"paid": true, "pay": true, "repaid": true, "returned": true, "sent": true, "gave": true,
	}
	expenseVerbs = map[string]bool{
		"spent": true, "spend": true, "bought": true, "buy": true, "expense": true, "split": true,
	}
)

// scanned is the token level reading of a message.
type scanned struct {
	amount   *decimal.Decimal
	mentions []string
	mode     model.SplitMode // empty when neither "with" nor "for" precedes a mention
	toSeen   bool            // "to" precedes a mention
	words    []string
}

func (s scanned) description() string {
	words := s.words
	for len(words) > 0 && leadingFiller[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for len(words) > 0 && mentionGlue[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func scan(text string) scanned {
	var s scanned
	for _, tok := range strings.Fields(text) {
		if strings.HasPrefix(tok, "@") {
			mention := strings.TrimRight(tok, ",.!?;:")
			if len(mention) < 2 {
				continue
			}
			// the words right before a mention say how it is involved
			for len(s.words) > 0 {
				glue := strings.ToLower(s.words[len(s.words)-1])
				if !mentionGlue[glue] {
					break
				}
				switch glue {
				case "with":
					if s.mode == "" {
						s.mode = model.SplitWith
					}
				case "for":
					if s.mode == "" {
						s.mode = model.PaidFor
					}
				case "to":
					s.toSeen = true
				}
				s.words = s.words[:len(s.words)-1]
			}
			s.mentions = append(s.mentions, mention)
			continue
		}
		if s.amount == nil {
			if d, ok := ParseAmount(tok); ok {
				s.amount = &d
				continue
			}
		}
		s.words = append(s.words, tok)
	}
	return s
}

// ParseCommand turns a slash command and its arguments into an intent.
func ParseCommand(command, args string, sender model.Member) (model.Intent, error) {
	s := scan(args)
	switch strings.ToLower(command) {
	case CmdSpent:
		return expenseFrom(s, sender), nil
	case CmdPaid:
		return paymentFrom(s, sender), nil
	case CmdMyBalance:
		return &model.QueryIntent{Query: model.QueryBalance, Subject: strconv.FormatInt(sender.ID, 10)}, nil
	case CmdSettleUp:
		return &model.QueryIntent{Query: model.QuerySettle, Subject: first(s.mentions)}, nil
	case CmdLedger:
		return &model.QueryIntent{Query: model.QueryBalance}, nil
	case CmdHistory:
		return &model.QueryIntent{Query: model.QueryHistory}, nil
	case CmdClearDebts:
		return &model.ResetIntent{}, nil
	}
	return nil, &model.AmbiguousIntentError{Text: "/" + command + " " + args}
}

// ParseText classifies free text with keyword rules. It is the fallback
// when the oracle is not configured or fails.
func ParseText(text string, sender model.Member) (model.Intent, error) {
	s := scan(text)
	kw := keywords(text)
	verb := ""
	if len(s.words) > 0 {
		verb = strings.ToLower(s.words[0])
		if verb == "i" && len(s.words) > 1 {
			verb = strings.ToLower(s.words[1])
		}
	}

	// keyword requests never carry an amount
	query := s.amount == nil
	switch {
	case query && (kw["reset"] || kw[CmdClearDebts] || (kw["clear"] && kw["debts"])):
		return &model.ResetIntent{}, nil
	case query && (kw["settle"] || kw[CmdSettleUp]):
		return &model.QueryIntent{Query: model.QuerySettle, Subject: first(s.mentions)}, nil
	case query && kw[CmdHistory]:
		return &model.QueryIntent{Query: model.QueryHistory}, nil
	case query && (kw["balance"] || kw["balances"] || kw["owe"] || kw["owes"] || kw["owed"] || kw[CmdLedger]):
		subject := first(s.mentions)
		if subject == "" && (kw["my"] || (kw["i"] && kw["owe"])) {
			subject = strconv.FormatInt(sender.ID, 10)
		}
		return &model.QueryIntent{Query: model.QueryBalance, Subject: subject}, nil
	case paymentVerbs[verb] && len(s.mentions) > 0 && s.mode != model.PaidFor:
		return paymentFrom(s, sender), nil
	case expenseVerbs[verb] || paymentVerbs[verb] || (s.amount != nil && s.description() != ""):
		return expenseFrom(s, sender), nil
	}
	return nil, &model.AmbiguousIntentError{Text: text}
}

// keywords returns the lower cased whole words of text.
func keywords(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '\''
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func expenseFrom(s scanned, sender model.Member) *model.ExpenseIntent {
	mode := s.mode
	if mode == "" {
		mode = model.SplitWith
	}
	return &model.ExpenseIntent{
		Amount:       s.amount,
		Description:  s.description(),
		Payer:        sender,
		Mode:         mode,
		Participants: s.mentions,
	}
}

func paymentFrom(s scanned, sender model.Member) *model.PaymentIntent {
	desc := s.description()
	if desc == "" {
		desc = defaultPaymentDescription
	}
	return &model.PaymentIntent{
		Amount:      s.amount,
		Description: desc,
		Payer:       sender,
		Recipient:   first(s.mentions),
	}
}

func first(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}
