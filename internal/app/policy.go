package app

import (
	"context"

	"pinpal/api/internal/store"
)

// Board access rules. The owner can do everything, editors can draw
// and chat, and private boards hide themselves from everyone else.

func isOwner(board store.Board, userID int64) bool {
	return board.OwnerID == userID
}

func (s *Service) canEditBoard(ctx context.Context, board store.Board, userID int64) (bool, error) {
	if isOwner(board, userID) {
		return true, nil
	}
	return s.store.IsBoardEditor(ctx, board.ID, userID)
}

func (s *Service) canViewBoard(ctx context.Context, board store.Board, userID int64) (bool, error) {
	if !board.Private {
		return true, nil
	}
	return s.canEditBoard(ctx, board, userID)
}

// canManageBoard covers renaming, deletion and editor membership.
func canManageBoard(board store.Board, userID int64) bool {
	return isOwner(board, userID)
}
