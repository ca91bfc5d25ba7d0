package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"pinpal/api/internal/store"
)

func TestRegisterValidatesFields(t *testing.T) {
	s := newTestService(&fakeStore{})

	_, err := s.Register(context.Background(), RegisterInput{
		Username:    "bad username!",
		DisplayName: " padded ",
		Password:    "",
	})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusBadRequest {
		t.Fatalf("Register error = %v, want 400", err)
	}
	for _, field := range []string{"username", "displayName", "password"} {
		if _, ok := derr.Fields[field]; !ok {
			t.Errorf("fields = %v, want an entry for %s", derr.Fields, field)
		}
	}
}

func TestRegisterUsernameTaken(t *testing.T) {
	st := &fakeStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (store.User, error) {
			return store.User{ID: 1, Username: username}, nil
		},
	}
	s := newTestService(st)

	_, err := s.Register(context.Background(), RegisterInput{
		Username:    "taken",
		DisplayName: "Taken",
		Password:    "secret",
	})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusConflict {
		t.Fatalf("Register error = %v, want 409", err)
	}
}

func TestRegisterJoinsLobby(t *testing.T) {
	st := &fakeStore{
		getBoardFn: func(ctx context.Context, boardID int64) (store.Board, error) {
			return store.Board{ID: 1, Name: "Lobby", OwnerID: 99, ConversationID: 2}, nil
		},
	}
	var addedToBoard, addedToConversation bool
	st.addBoardEditorFn = func(ctx context.Context, boardID, userID int64) error {
		addedToBoard = boardID == 1
		return nil
	}
	st.addConversationParticipantFn = func(ctx context.Context, conversationID, userID int64) error {
		addedToConversation = conversationID == 2
		return nil
	}
	s := newTestService(st)

	user, err := s.Register(context.Background(), RegisterInput{
		Username:    "dana",
		DisplayName: "Dana",
		Password:    "secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "dana" {
		t.Errorf("username = %q", user.Username)
	}
	if !addedToBoard || !addedToConversation {
		t.Error("new user was not joined to the lobby board and its conversation")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	st := &fakeStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (store.User, error) {
			return store.User{ID: 1, Username: username, PasswordHash: string(hash)}, nil
		},
	}
	s := newTestService(st)

	_, err = s.Login(context.Background(), LoginInput{Username: "dana", Password: "wrong"})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusUnauthorized {
		t.Fatalf("Login error = %v, want 401", err)
	}
	if want := "Invalid username or password."; derr.Message != want {
		t.Errorf("message = %q, want %q", derr.Message, want)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	st := &fakeStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (store.User, error) {
			return store.User{ID: 7, Username: username, DisplayName: "Dana", PasswordHash: string(hash)}, nil
		},
		getUserByIDFn: func(ctx context.Context, userID int64) (store.User, error) {
			return store.User{ID: userID, Username: "dana", DisplayName: "Dana"}, nil
		},
	}
	s := newTestService(st)

	session, err := s.Login(context.Background(), LoginInput{Username: "dana", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("session tokens missing")
	}

	// The issued access token must round-trip through SessionFromToken.
	parsed, err := s.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	if parsed.UserID != 7 || parsed.Username != "dana" {
		t.Errorf("parsed session = %+v", parsed)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	st := &fakeStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (store.User, error) {
			return store.User{ID: 7, Username: username, DisplayName: "Dana", PasswordHash: string(hash)}, nil
		},
	}
	s := newTestService(st)

	first, err := s.Login(context.Background(), LoginInput{Username: "dana", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := s.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed refresh token must be gone.
	_, err = s.Refresh(context.Background(), first.RefreshToken)
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusUnauthorized {
		t.Fatalf("Refresh with used token error = %v, want 401", err)
	}
}

func TestSessionFromTokenRevokedJTI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	st := &fakeStore{
		getUserByUsernameFn: func(ctx context.Context, username string) (store.User, error) {
			return store.User{ID: 7, Username: username, PasswordHash: string(hash)}, nil
		},
		isAccessTokenRevokedFn: func(ctx context.Context, jti string) (bool, error) {
			return true, nil
		},
	}
	s := newTestService(st)

	session, err := s.Login(context.Background(), LoginInput{Username: "dana", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.SessionFromToken(context.Background(), session.Token); err == nil {
		t.Fatal("SessionFromToken accepted a revoked token")
	}
}
