package types

// Identity is the sender as seen by the transport
type Identity struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"` // without the @
	IsBot     bool   `json:"is_bot"`
}

// Input is one inbound message or command
type Input struct {
	ChatID    int64    `json:"chat_id"`
	ChatTitle string   `json:"chat_title"`
	Sender    Identity `json:"sender"`
	Text      string   `json:"text"`    // message text, command arguments when Command is set
	Command   string   `json:"command"` // command name without the slash, empty for plain text
}

// Status is the domain-level outcome of one interaction.
type Status string

const (
	StatusOK       Status = "ok"
	StatusClarify  Status = "clarify"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
)

// Reply is what the bot answers
type Reply struct {
	Status Status `json:"status"`
	Text   string `json:"text"`
	// AwaitReply asks the transport to force a reply from the sender.
	AwaitReply bool `json:"await_reply"`
}
