package model

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

// Message role constants.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Conversation groups the messages of one assistant session.
type Conversation struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	UserID    string
}

// ConversationMessage is one persisted turn of a conversation. ToolName is
// set only for tool-result turns.
type ConversationMessage struct {
	CreatedAt time.Time
	Role      MessageRole
	Content   string
	ToolName  string
}
