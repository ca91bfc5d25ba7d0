package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"pinpal/api/internal/store"
)

func TestCreateBoardValidatesName(t *testing.T) {
	s := newTestService(&fakeStore{})

	_, err := s.CreateBoard(context.Background(), Session{UserID: 42}, BoardInput{Name: ""})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusBadRequest {
		t.Fatalf("CreateBoard error = %v, want 400", err)
	}
	if _, ok := derr.Fields["name"]; !ok {
		t.Errorf("fields = %v, want an entry for name", derr.Fields)
	}
}

func TestCreateBoard(t *testing.T) {
	st := &fakeStore{
		createBoardFn: func(ctx context.Context, name string, ownerID int64, private bool) (store.Board, error) {
			if ownerID != 42 {
				t.Errorf("ownerID = %d, want 42", ownerID)
			}
			return store.Board{ID: 5, Name: name, OwnerID: ownerID, Private: private, ConversationID: 9}, nil
		},
	}
	s := newTestService(st)

	board, err := s.CreateBoard(context.Background(), Session{UserID: 42}, BoardInput{Name: "Sprint sketches", Private: true})
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if board.Name != "Sprint sketches" || !board.Private {
		t.Errorf("board = %+v", board)
	}
}

func TestGetBoardViewPrivateNonEditor(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 1, Private: true})
	s := newTestService(st)

	_, err := s.GetBoardView(context.Background(), Session{UserID: 42}, 7)
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusUnauthorized {
		t.Fatalf("GetBoardView error = %v, want 401", err)
	}
}

func TestGetBoardViewPublicAnyUser(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 1, Private: false})
	st.getUserByIDFn = func(ctx context.Context, userID int64) (store.User, error) {
		return store.User{ID: userID, DisplayName: "Owner"}, nil
	}
	s := newTestService(st)

	view, err := s.GetBoardView(context.Background(), Session{UserID: 42}, 7)
	if err != nil {
		t.Fatalf("GetBoardView: %v", err)
	}
	if view.Owner.ID != 1 {
		t.Errorf("owner id = %d, want 1", view.Owner.ID)
	}
}

func TestUpdateBoardNonOwner(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 1})
	st.isBoardEditorFn = func(ctx context.Context, boardID, userID int64) (bool, error) {
		return true, nil
	}
	s := newTestService(st)

	// Editors can draw, but only the owner manages the board.
	_, err := s.UpdateBoard(context.Background(), Session{UserID: 42}, 7, BoardInput{Name: "Renamed"})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusUnauthorized {
		t.Fatalf("UpdateBoard error = %v, want 401", err)
	}
	if want := "You are not the Owner of this Board."; derr.Message != want {
		t.Errorf("message = %q, want %q", derr.Message, want)
	}
}

func TestAddEditorOwnerConflict(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42, ConversationID: 9})
	st.getUserByUsernameFn = func(ctx context.Context, username string) (store.User, error) {
		return store.User{ID: 42, Username: username}, nil
	}
	s := newTestService(st)

	_, err := s.AddEditor(context.Background(), Session{UserID: 42}, 7, "owner")
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusConflict {
		t.Fatalf("AddEditor error = %v, want 409", err)
	}
}

func TestAddEditorJoinsConversation(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42, ConversationID: 9})
	st.getUserByUsernameFn = func(ctx context.Context, username string) (store.User, error) {
		return store.User{ID: 5, Username: username, DisplayName: "Carol"}, nil
	}
	var joinedConversation int64
	st.addConversationParticipantFn = func(ctx context.Context, conversationID, userID int64) error {
		joinedConversation = conversationID
		return nil
	}
	s := newTestService(st)

	user, err := s.AddEditor(context.Background(), Session{UserID: 42}, 7, "carol")
	if err != nil {
		t.Fatalf("AddEditor: %v", err)
	}
	if user.DisplayName != "Carol" {
		t.Errorf("display name = %q, want Carol", user.DisplayName)
	}
	if joinedConversation != 9 {
		t.Errorf("joined conversation %d, want 9", joinedConversation)
	}
}

func TestAddEditorRollsBackOnConversationFailure(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42, ConversationID: 9})
	st.getUserByUsernameFn = func(ctx context.Context, username string) (store.User, error) {
		return store.User{ID: 5, Username: username}, nil
	}
	st.addConversationParticipantFn = func(ctx context.Context, conversationID, userID int64) error {
		return errors.New("participant insert failed")
	}
	var rolledBack bool
	st.removeBoardEditorFn = func(ctx context.Context, boardID, userID int64) error {
		rolledBack = true
		return nil
	}
	s := newTestService(st)

	if _, err := s.AddEditor(context.Background(), Session{UserID: 42}, 7, "carol"); err == nil {
		t.Fatal("AddEditor succeeded despite participant failure")
	}
	if !rolledBack {
		t.Error("editor grant was not rolled back")
	}
}

func TestDeleteBoardNotFound(t *testing.T) {
	s := newTestService(&fakeStore{})

	err := s.DeleteBoard(context.Background(), Session{UserID: 42}, 404)
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusNotFound {
		t.Fatalf("DeleteBoard error = %v, want 404", err)
	}
}
