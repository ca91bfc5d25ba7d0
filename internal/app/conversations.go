package app

import (
	"context"
	"fmt"
	"net/http"

	"pinpal/api/internal/store"
	"pinpal/api/internal/validate"
)

func (s *Service) GetConversation(ctx context.Context, session Session, conversationID int64) ([]store.Message, error) {
	if err := s.requireParticipant(ctx, session, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (s *Service) SendMessage(ctx context.Context, session Session, conversationID int64, text string) (store.Message, error) {
	if err := s.requireParticipant(ctx, session, conversationID); err != nil {
		return store.Message{}, err
	}
	if !validate.MessageText(text) {
		return store.Message{}, validationError(map[string]string{
			"text": "Message text must be 1-1024 characters.",
		})
	}

	message, err := s.store.InsertMessage(ctx, store.Message{
		ConversationID: conversationID,
		AuthorID:       session.UserID,
		Text:           text,
	})
	if err != nil {
		return store.Message{}, fmt.Errorf("insert message: %w", err)
	}
	message.AuthorName = session.DisplayName
	return message, nil
}

func (s *Service) requireParticipant(ctx context.Context, session Session, conversationID int64) error {
	exists, err := s.store.ConversationExists(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return notFoundError("Conversation not found.")
	}
	participant, err := s.store.IsConversationParticipant(ctx, conversationID, session.UserID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !participant {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "You are not a participant of this Conversation.")
	}
	return nil
}
