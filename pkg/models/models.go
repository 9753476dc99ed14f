package models

import "time"

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the chat display list
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a server-side grouping of messages as returned by the history endpoint
type Conversation struct {
	ID       any       `json:"id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Messages []Message `json:"messages"`
}

// TranscriptEntry is a locally recorded copy of a message appended during a live session
type TranscriptEntry struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Flatten concatenates the messages of all conversations in the order received
func Flatten(conversations []Conversation) []Message {
	var messages []Message
	for _, convo := range conversations {
		messages = append(messages, convo.Messages...)
	}
	return messages
}
