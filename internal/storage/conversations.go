package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// CreateConversation starts a new assistant conversation.
func (s *SQLiteStorage) CreateConversation(ctx context.Context, conversation *model.Conversation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("%w: conversation", ErrNilParameter)
	}
	if err := validateString(conversation.ID, "conversation.ID"); err != nil {
		return err
	}
	return s.createConversationTx(ctx, s.db, conversation)
}

func (s *SQLiteStorage) createConversationTx(ctx context.Context, q queryable, conversation *model.Conversation) error {
	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, conversation.ID, conversation.UserID, conversation.CreatedAt, conversation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation scoped to a user.
func (s *SQLiteStorage) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getConversationTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getConversationTx(ctx context.Context, q queryable, userID, id string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND id = ?
	`, userID, id).Scan(
		&conversation.ID,
		&conversation.UserID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// SaveConversationMessage appends one message to a conversation and bumps
// its updated_at.
func (s *SQLiteStorage) SaveConversationMessage(ctx context.Context, conversationID string, message *model.ConversationMessage) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(conversationID, "conversationID"); err != nil {
		return err
	}
	if message == nil {
		return fmt.Errorf("%w: message", ErrNilParameter)
	}
	return s.saveConversationMessageTx(ctx, s.db, conversationID, message)
}

func (s *SQLiteStorage) saveConversationMessageTx(ctx context.Context, q queryable, conversationID string, message *model.ConversationMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conversationID, string(message.Role), message.Content, message.ToolName, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation message: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, message.CreatedAt, conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// GetConversationMessages returns all messages of a conversation in order.
func (s *SQLiteStorage) GetConversationMessages(ctx context.Context, conversationID string) ([]model.ConversationMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(conversationID, "conversationID"); err != nil {
		return nil, err
	}
	return s.getConversationMessagesTx(ctx, s.db, conversationID)
}

func (s *SQLiteStorage) getConversationMessagesTx(ctx context.Context, q queryable, conversationID string) ([]model.ConversationMessage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT role, content, tool_name, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.ConversationMessage
	for rows.Next() {
		var message model.ConversationMessage
		var role string
		if err := rows.Scan(&role, &message.Content, &message.ToolName, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation message: %w", err)
		}
		message.Role = model.MessageRole(role)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation messages: %w", err)
	}
	return messages, nil
}
