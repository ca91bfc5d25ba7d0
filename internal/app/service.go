package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"pinpal/api/internal/auth"
	"pinpal/api/internal/authpw"
	"pinpal/api/internal/avatar"
	"pinpal/api/internal/config"
	"pinpal/api/internal/export"
	"pinpal/api/internal/history"
	"pinpal/api/internal/search"
	"pinpal/api/internal/store"
	"pinpal/api/internal/util"
	"pinpal/api/internal/validate"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	Username     string
	DisplayName  string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (store.User, error)
	GetUserByID(ctx context.Context, userID int64) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	UpdateUser(ctx context.Context, userID int64, username, displayName string) (int64, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateUserAvatar(ctx context.Context, userID int64, objectName string) error
	DeleteUser(ctx context.Context, userID int64) (int64, error)

	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	CreateBoard(ctx context.Context, name string, ownerID int64, private bool) (store.Board, error)
	GetBoard(ctx context.Context, boardID int64) (store.Board, error)
	GetBoardByConversation(ctx context.Context, conversationID int64) (store.Board, error)
	UpdateBoard(ctx context.Context, boardID int64, name string, private bool) (int64, error)
	DeleteBoard(ctx context.Context, boardID int64) (int64, error)
	ListBoardsByUser(ctx context.Context, userID int64) ([]store.Board, error)
	ListPublicBoardsByOwner(ctx context.Context, ownerID int64) ([]store.Board, error)
	ListBoardEditors(ctx context.Context, boardID int64) ([]store.User, error)
	IsBoardEditor(ctx context.Context, boardID, userID int64) (bool, error)
	AddBoardEditor(ctx context.Context, boardID, userID int64) error
	RemoveBoardEditor(ctx context.Context, boardID, userID int64) error
	TryLockBoard(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error)
	UnlockBoard(ctx context.Context, boardID int64) error

	InsertShape(ctx context.Context, shape store.Shape) (store.Shape, error)
	GetShape(ctx context.Context, shapeID int64) (store.Shape, error)
	ListShapesByBoard(ctx context.Context, boardID int64) ([]store.Shape, error)
	UpdateShape(ctx context.Context, shape store.Shape) (int64, error)
	DeleteShape(ctx context.Context, shapeID int64) (int64, error)

	ConversationExists(ctx context.Context, conversationID int64) (bool, error)
	IsConversationParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	AddConversationParticipant(ctx context.Context, conversationID, userID int64) error
	RemoveConversationParticipant(ctx context.Context, conversationID, userID int64) error
	ListMessages(ctx context.Context, conversationID int64) ([]store.Message, error)
	InsertMessage(ctx context.Context, message store.Message) (store.Message, error)

	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. Redis in production, the Postgres
// store serves as a fallback backend.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	locks     *lockManager
	search    *search.Service
	history   *history.Service
	avatars   *avatar.Service
	pdf       *export.PDFRenderer
}

func New(cfg config.Config, st dataStore, sessions sessionStore) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		passwords: authpw.NewService(st),
		locks:     newLockManager(st, cfg.LockTimeout),
	}
}

func (s *Service) SetSearch(sv *search.Service)  { s.search = sv }
func (s *Service) SetHistory(h *history.Service) { s.history = h }
func (s *Service) SetAvatars(a *avatar.Service)  { s.avatars = a }

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap makes sure the lobby board exists. Every new user joins it
// as an editor.
func (s *Service) Bootstrap(ctx context.Context) error {
	_, err := s.store.GetBoard(ctx, s.cfg.LobbyBoardID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check lobby board: %w", err)
	}

	owner, err := s.store.GetUserByUsername(ctx, "pinpal")
	if errors.Is(err, sql.ErrNoRows) {
		owner, err = s.passwords.SignUp(ctx, "pinpal", "PinPal", util.NewID(""))
	}
	if err != nil {
		return fmt.Errorf("ensure lobby owner: %w", err)
	}

	board, err := s.store.CreateBoard(ctx, "Lobby", owner.ID, false)
	if err != nil {
		return fmt.Errorf("create lobby board: %w", err)
	}
	if board.ID != s.cfg.LobbyBoardID {
		log.Printf("lobby board created with id %d, configured id is %d", board.ID, s.cfg.LobbyBoardID)
	}
	s.indexBoard(board, owner.DisplayName)
	return nil
}

type RegisterInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register creates the account and joins the new user to the lobby
// board.
func (s *Service) Register(ctx context.Context, input RegisterInput) (store.User, error) {
	fields := make(map[string]string)
	if !validate.Username(input.Username) {
		fields["username"] = "Username must be 1-64 characters of letters, digits, dashes or underscores."
	}
	if !validate.DisplayName(input.DisplayName) {
		fields["displayName"] = "Display name must be 1-64 characters without surrounding whitespace."
	}
	if !validate.Password(input.Password) {
		fields["password"] = "Password is required and may not exceed 2048 characters."
	}
	if len(fields) > 0 {
		return store.User{}, validationError(fields)
	}

	user, err := s.passwords.SignUp(ctx, input.Username, input.DisplayName, input.Password)
	if errors.Is(err, authpw.ErrUsernameTaken) {
		return store.User{}, conflictError("Username is already taken.")
	}
	if err != nil {
		return store.User{}, err
	}

	// Lobby membership is a convenience, not part of the account
	// contract. Losing it does not fail registration.
	lobby, err := s.store.GetBoard(ctx, s.cfg.LobbyBoardID)
	if err != nil {
		log.Printf("lobby board lookup failed for new user %s: %v", user.Username, err)
		return user, nil
	}
	if err := s.addEditor(ctx, lobby, user.ID); err != nil {
		log.Printf("lobby join failed for new user %s: %v", user.Username, err)
	}
	return user, nil
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	user, err := s.passwords.SignIn(ctx, input.Username, input.Password)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password.")
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid.")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:      user.ID,
		Username: user.Username,
		Name:     user.DisplayName,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}
