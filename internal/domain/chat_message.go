package domain

import "time"

type ChatMessageType string

const (
	ChatMessageReceived ChatMessageType = "received"
	ChatMessageSent     ChatMessageType = "sent"
)

func (t ChatMessageType) String() string { return string(t) }

// ChatMessage is one inbound or outbound chatbot message.
type ChatMessage struct {
	ID            string
	CustomerPhone string
	MessageText   string
	MessageType   ChatMessageType
	BotResponse   *string
	Processed     bool
	CreatedAt     time.Time
}
