package app

import (
	"context"
	"database/sql"
	"time"

	"pinpal/api/internal/config"
	"pinpal/api/internal/store"
)

// fakeStore implements dataStore with overridable function fields.
// Lookups default to sql.ErrNoRows; mutations default to success.
type fakeStore struct {
	createUserFn         func(ctx context.Context, username, displayName, passwordHash string) (store.User, error)
	getUserByIDFn        func(ctx context.Context, userID int64) (store.User, error)
	getUserByUsernameFn  func(ctx context.Context, username string) (store.User, error)
	updateUserFn         func(ctx context.Context, userID int64, username, displayName string) (int64, error)
	updateUserPasswordFn func(ctx context.Context, userID int64, passwordHash string) error
	updateUserAvatarFn   func(ctx context.Context, userID int64, objectName string) error
	deleteUserFn         func(ctx context.Context, userID int64) (int64, error)

	revokeAccessTokenFn    func(ctx context.Context, jti string, exp time.Time) error
	isAccessTokenRevokedFn func(ctx context.Context, jti string) (bool, error)

	createBoardFn            func(ctx context.Context, name string, ownerID int64, private bool) (store.Board, error)
	getBoardFn               func(ctx context.Context, boardID int64) (store.Board, error)
	getBoardByConversationFn func(ctx context.Context, conversationID int64) (store.Board, error)
	updateBoardFn            func(ctx context.Context, boardID int64, name string, private bool) (int64, error)
	deleteBoardFn            func(ctx context.Context, boardID int64) (int64, error)
	listBoardsByUserFn       func(ctx context.Context, userID int64) ([]store.Board, error)
	listPublicBoardsFn       func(ctx context.Context, ownerID int64) ([]store.Board, error)
	listBoardEditorsFn       func(ctx context.Context, boardID int64) ([]store.User, error)
	isBoardEditorFn          func(ctx context.Context, boardID, userID int64) (bool, error)
	addBoardEditorFn         func(ctx context.Context, boardID, userID int64) error
	removeBoardEditorFn      func(ctx context.Context, boardID, userID int64) error
	tryLockBoardFn           func(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error)
	unlockBoardFn            func(ctx context.Context, boardID int64) error

	insertShapeFn       func(ctx context.Context, shape store.Shape) (store.Shape, error)
	getShapeFn          func(ctx context.Context, shapeID int64) (store.Shape, error)
	listShapesByBoardFn func(ctx context.Context, boardID int64) ([]store.Shape, error)
	updateShapeFn       func(ctx context.Context, shape store.Shape) (int64, error)
	deleteShapeFn       func(ctx context.Context, shapeID int64) (int64, error)

	conversationExistsFn            func(ctx context.Context, conversationID int64) (bool, error)
	isConversationParticipantFn     func(ctx context.Context, conversationID, userID int64) (bool, error)
	addConversationParticipantFn    func(ctx context.Context, conversationID, userID int64) error
	removeConversationParticipantFn func(ctx context.Context, conversationID, userID int64) error
	listMessagesFn                  func(ctx context.Context, conversationID int64) ([]store.Message, error)
	insertMessageFn                 func(ctx context.Context, message store.Message) (store.Message, error)

	pingFn func(ctx context.Context) error
}

func (f *fakeStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (store.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, username, displayName, passwordHash)
	}
	return store.User{ID: 1, Username: username, DisplayName: displayName, PasswordHash: passwordHash}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID int64) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if f.getUserByUsernameFn != nil {
		return f.getUserByUsernameFn(ctx, username)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUser(ctx context.Context, userID int64, username, displayName string) (int64, error) {
	if f.updateUserFn != nil {
		return f.updateUserFn(ctx, userID, username, displayName)
	}
	return 1, nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	if f.updateUserPasswordFn != nil {
		return f.updateUserPasswordFn(ctx, userID, passwordHash)
	}
	return nil
}

func (f *fakeStore) UpdateUserAvatar(ctx context.Context, userID int64, objectName string) error {
	if f.updateUserAvatarFn != nil {
		return f.updateUserAvatarFn(ctx, userID, objectName)
	}
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	if f.deleteUserFn != nil {
		return f.deleteUserFn(ctx, userID)
	}
	return 1, nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, exp)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) CreateBoard(ctx context.Context, name string, ownerID int64, private bool) (store.Board, error) {
	if f.createBoardFn != nil {
		return f.createBoardFn(ctx, name, ownerID, private)
	}
	return store.Board{ID: 1, Name: name, OwnerID: ownerID, Private: private, ConversationID: 1}, nil
}

func (f *fakeStore) GetBoard(ctx context.Context, boardID int64) (store.Board, error) {
	if f.getBoardFn != nil {
		return f.getBoardFn(ctx, boardID)
	}
	return store.Board{}, sql.ErrNoRows
}

func (f *fakeStore) GetBoardByConversation(ctx context.Context, conversationID int64) (store.Board, error) {
	if f.getBoardByConversationFn != nil {
		return f.getBoardByConversationFn(ctx, conversationID)
	}
	return store.Board{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateBoard(ctx context.Context, boardID int64, name string, private bool) (int64, error) {
	if f.updateBoardFn != nil {
		return f.updateBoardFn(ctx, boardID, name, private)
	}
	return 1, nil
}

func (f *fakeStore) DeleteBoard(ctx context.Context, boardID int64) (int64, error) {
	if f.deleteBoardFn != nil {
		return f.deleteBoardFn(ctx, boardID)
	}
	return 1, nil
}

func (f *fakeStore) ListBoardsByUser(ctx context.Context, userID int64) ([]store.Board, error) {
	if f.listBoardsByUserFn != nil {
		return f.listBoardsByUserFn(ctx, userID)
	}
	return []store.Board{}, nil
}

func (f *fakeStore) ListPublicBoardsByOwner(ctx context.Context, ownerID int64) ([]store.Board, error) {
	if f.listPublicBoardsFn != nil {
		return f.listPublicBoardsFn(ctx, ownerID)
	}
	return []store.Board{}, nil
}

func (f *fakeStore) ListBoardEditors(ctx context.Context, boardID int64) ([]store.User, error) {
	if f.listBoardEditorsFn != nil {
		return f.listBoardEditorsFn(ctx, boardID)
	}
	return []store.User{}, nil
}

func (f *fakeStore) IsBoardEditor(ctx context.Context, boardID, userID int64) (bool, error) {
	if f.isBoardEditorFn != nil {
		return f.isBoardEditorFn(ctx, boardID, userID)
	}
	return false, nil
}

func (f *fakeStore) AddBoardEditor(ctx context.Context, boardID, userID int64) error {
	if f.addBoardEditorFn != nil {
		return f.addBoardEditorFn(ctx, boardID, userID)
	}
	return nil
}

func (f *fakeStore) RemoveBoardEditor(ctx context.Context, boardID, userID int64) error {
	if f.removeBoardEditorFn != nil {
		return f.removeBoardEditorFn(ctx, boardID, userID)
	}
	return nil
}

func (f *fakeStore) TryLockBoard(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error) {
	if f.tryLockBoardFn != nil {
		return f.tryLockBoardFn(ctx, boardID, userID, now, staleBefore)
	}
	return true, nil
}

func (f *fakeStore) UnlockBoard(ctx context.Context, boardID int64) error {
	if f.unlockBoardFn != nil {
		return f.unlockBoardFn(ctx, boardID)
	}
	return nil
}

func (f *fakeStore) InsertShape(ctx context.Context, shape store.Shape) (store.Shape, error) {
	if f.insertShapeFn != nil {
		return f.insertShapeFn(ctx, shape)
	}
	shape.ID = 1
	return shape, nil
}

func (f *fakeStore) GetShape(ctx context.Context, shapeID int64) (store.Shape, error) {
	if f.getShapeFn != nil {
		return f.getShapeFn(ctx, shapeID)
	}
	return store.Shape{}, sql.ErrNoRows
}

func (f *fakeStore) ListShapesByBoard(ctx context.Context, boardID int64) ([]store.Shape, error) {
	if f.listShapesByBoardFn != nil {
		return f.listShapesByBoardFn(ctx, boardID)
	}
	return []store.Shape{}, nil
}

func (f *fakeStore) UpdateShape(ctx context.Context, shape store.Shape) (int64, error) {
	if f.updateShapeFn != nil {
		return f.updateShapeFn(ctx, shape)
	}
	return 1, nil
}

func (f *fakeStore) DeleteShape(ctx context.Context, shapeID int64) (int64, error) {
	if f.deleteShapeFn != nil {
		return f.deleteShapeFn(ctx, shapeID)
	}
	return 1, nil
}

func (f *fakeStore) ConversationExists(ctx context.Context, conversationID int64) (bool, error) {
	if f.conversationExistsFn != nil {
		return f.conversationExistsFn(ctx, conversationID)
	}
	return false, nil
}

func (f *fakeStore) IsConversationParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	if f.isConversationParticipantFn != nil {
		return f.isConversationParticipantFn(ctx, conversationID, userID)
	}
	return false, nil
}

func (f *fakeStore) AddConversationParticipant(ctx context.Context, conversationID, userID int64) error {
	if f.addConversationParticipantFn != nil {
		return f.addConversationParticipantFn(ctx, conversationID, userID)
	}
	return nil
}

func (f *fakeStore) RemoveConversationParticipant(ctx context.Context, conversationID, userID int64) error {
	if f.removeConversationParticipantFn != nil {
		return f.removeConversationParticipantFn(ctx, conversationID, userID)
	}
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID int64) ([]store.Message, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, conversationID)
	}
	return []store.Message{}, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, message store.Message) (store.Message, error) {
	if f.insertMessageFn != nil {
		return f.insertMessageFn(ctx, message)
	}
	message.ID = 1
	return message, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// fakeSessions is an in-memory sessionStore.
type fakeSessions struct {
	saved map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string]store.User)}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	f.saved[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	user, ok := f.saved[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	delete(f.saved, tokenHash)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:    "test-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		LockTimeout:  5 * time.Second,
		LobbyBoardID: 1,
	}
}

func newTestService(st *fakeStore) *Service {
	return New(testConfig(), st, newFakeSessions())
}

func floatPtr(v float64) *float64 {
	return &v
}
