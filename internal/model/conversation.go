package model

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation. Slices of turns are ordered
// oldest first.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// String renders the turn the way it is fed to the oracle.
func (t Turn) String() string {
	return string(t.Role) + ": " + t.Content
}

// Chat is a persisted conversation.
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a persisted turn belonging to a chat.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatWithMessages is a chat together with its ordered messages.
type ChatWithMessages struct {
	Chat
	Messages []Message `json:"messages"`
}

// Turns converts stored messages into conversation turns, preserving order.
func Turns(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
