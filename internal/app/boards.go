package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"pinpal/api/internal/search"
	"pinpal/api/internal/store"
	"pinpal/api/internal/validate"
)

// BoardView is everything a client needs to render a board.
type BoardView struct {
	Board   store.Board
	Owner   store.User
	Shapes  []store.Shape
	Editors []store.User
}

type BoardInput struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

func (s *Service) CreateBoard(ctx context.Context, session Session, input BoardInput) (store.Board, error) {
	if !validate.BoardName(input.Name) {
		return store.Board{}, validationError(map[string]string{
			"name": "Board name must be 1-64 characters of letters, digits, spaces or punctuation.",
		})
	}

	board, err := s.store.CreateBoard(ctx, input.Name, session.UserID, input.Private)
	if err != nil {
		return store.Board{}, fmt.Errorf("create board: %w", err)
	}
	s.indexBoard(board, session.DisplayName)
	return board, nil
}

func (s *Service) GetBoardView(ctx context.Context, session Session, boardID int64) (BoardView, error) {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	allowed, err := s.canViewBoard(ctx, board, session.UserID)
	if err != nil {
		return BoardView{}, err
	}
	if !allowed {
		return BoardView{}, notEditorError()
	}

	owner, err := s.store.GetUserByID(ctx, board.OwnerID)
	if err != nil {
		return BoardView{}, fmt.Errorf("load board owner: %w", err)
	}
	shapes, err := s.store.ListShapesByBoard(ctx, board.ID)
	if err != nil {
		return BoardView{}, fmt.Errorf("list shapes: %w", err)
	}
	editors, err := s.store.ListBoardEditors(ctx, board.ID)
	if err != nil {
		return BoardView{}, fmt.Errorf("list editors: %w", err)
	}

	return BoardView{Board: board, Owner: owner, Shapes: shapes, Editors: editors}, nil
}

func (s *Service) ListBoards(ctx context.Context, session Session) ([]store.Board, error) {
	boards, err := s.store.ListBoardsByUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

func (s *Service) UpdateBoard(ctx context.Context, session Session, boardID int64, input BoardInput) (store.Board, error) {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if !canManageBoard(board, session.UserID) {
		return store.Board{}, notOwnerError()
	}
	if !validate.BoardName(input.Name) {
		return store.Board{}, validationError(map[string]string{
			"name": "Board name must be 1-64 characters of letters, digits, spaces or punctuation.",
		})
	}

	if _, err := s.store.UpdateBoard(ctx, board.ID, input.Name, input.Private); err != nil {
		return store.Board{}, fmt.Errorf("update board: %w", err)
	}
	board.Name = input.Name
	board.Private = input.Private

	if board.Private {
		s.deindexBoard(board.ID)
	} else {
		s.indexBoard(board, session.DisplayName)
	}
	return board, nil
}

func (s *Service) DeleteBoard(ctx context.Context, session Session, boardID int64) error {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if !canManageBoard(board, session.UserID) {
		return notOwnerError()
	}
	if _, err := s.store.DeleteBoard(ctx, board.ID); err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	s.deindexBoard(board.ID)
	return nil
}

func (s *Service) AddEditor(ctx context.Context, session Session, boardID int64, username string) (store.User, error) {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return store.User{}, err
	}
	if !canManageBoard(board, session.UserID) {
		return store.User{}, notOwnerError()
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, notFoundError("User not found.")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("look up user: %w", err)
	}
	if user.ID == board.OwnerID {
		return store.User{}, conflictError("The Owner is already an Editor of their own Board.")
	}
	if err := s.addEditor(ctx, board, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) RemoveEditor(ctx context.Context, session Session, boardID int64, username string) (store.User, error) {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return store.User{}, err
	}
	if !canManageBoard(board, session.UserID) {
		return store.User{}, notOwnerError()
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, notFoundError("User not found.")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("look up user: %w", err)
	}
	if user.ID == board.OwnerID {
		return store.User{}, conflictError("The Owner cannot be removed from their own Board.")
	}
	if err := s.removeEditor(ctx, board, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// addEditor grants edit rights and chat membership together. If the
// conversation write fails the editor grant is rolled back so the two
// memberships cannot drift apart.
func (s *Service) addEditor(ctx context.Context, board store.Board, userID int64) error {
	if err := s.store.AddBoardEditor(ctx, board.ID, userID); err != nil {
		return fmt.Errorf("add editor: %w", err)
	}
	if err := s.store.AddConversationParticipant(ctx, board.ConversationID, userID); err != nil {
		if rbErr := s.store.RemoveBoardEditor(ctx, board.ID, userID); rbErr != nil {
			log.Printf("editor rollback failed for board %d user %d: %v", board.ID, userID, rbErr)
		}
		return fmt.Errorf("add conversation participant: %w", err)
	}
	return nil
}

func (s *Service) removeEditor(ctx context.Context, board store.Board, userID int64) error {
	if err := s.store.RemoveBoardEditor(ctx, board.ID, userID); err != nil {
		return fmt.Errorf("remove editor: %w", err)
	}
	if err := s.store.RemoveConversationParticipant(ctx, board.ConversationID, userID); err != nil {
		if rbErr := s.store.AddBoardEditor(ctx, board.ID, userID); rbErr != nil {
			log.Printf("editor rollback failed for board %d user %d: %v", board.ID, userID, rbErr)
		}
		return fmt.Errorf("remove conversation participant: %w", err)
	}
	return nil
}

func (s *Service) getBoard(ctx context.Context, boardID int64) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Board{}, notFoundError("Board not found.")
	}
	if err != nil {
		return store.Board{}, fmt.Errorf("load board: %w", err)
	}
	return board, nil
}

func (s *Service) SearchBoards(ctx context.Context, query string) ([]search.BoardDocument, error) {
	if s.search == nil {
		return []search.BoardDocument{}, nil
	}
	return s.search.SearchBoards(ctx, query)
}

// indexBoard pushes a public board into the search index without
// blocking the request.
func (s *Service) indexBoard(board store.Board, ownerName string) {
	if s.search == nil || board.Private {
		return
	}
	doc := search.BoardDocument{
		ID:        board.ID,
		Name:      board.Name,
		OwnerName: ownerName,
		CreatedAt: board.CreatedAt.Unix(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.search.IndexBoard(ctx, doc); err != nil {
			log.Printf("index board %d: %v", board.ID, err)
		}
	}()
}

func (s *Service) deindexBoard(boardID int64) {
	if s.search == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.search.DeleteBoard(ctx, boardID); err != nil {
			log.Printf("deindex board %d: %v", boardID, err)
		}
	}()
}
