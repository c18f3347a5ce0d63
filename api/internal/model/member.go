package model

import (
	"strconv"
	"strings"
	"time"
)

// Member is a chat participant known to the ledger
type Member struct {
	ID          int64     `json:"id"`           // Telegram user ID, never changes
	DisplayName string    `json:"display_name"` // first name
	Handle      string    `json:"handle"`       // username without the @, may be empty
	Aliases     []string  `json:"aliases"`      // extra names the member answers to
	JoinedAt    time.Time `json:"joined_at"`
}

// Tag returns how the member should be mentioned in chat.
func (m Member) Tag() string {
	if m.Handle != "" {
		return "@" + m.Handle
	}
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return "#" + strconv.FormatInt(m.ID, 10)
}

// Name returns the human readable name.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Tag()
}

// NormalizeToken lowercases a mention or name and strips the leading @,
// so "@Alice" and "alice" compare equal.
func NormalizeToken(token string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(token), "@"))
}
