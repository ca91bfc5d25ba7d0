package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ConversationExists(ctx context.Context, conversationID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) IsConversationParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation participant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AddConversationParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("add conversation participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveConversationParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("remove conversation participant: %w", err)
	}
	return nil
}

// ListMessages returns the conversation's messages oldest first with
// the author name joined in.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.author_id, u.display_name, m.text, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.conversation_id = $1
		ORDER BY m.id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.AuthorName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, author_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, message.ConversationID, message.AuthorID, message.Text).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}
