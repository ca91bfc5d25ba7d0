package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, display_name, password_hash, avatar_object, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.AvatarObject, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns+`
	`, username, displayName, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (s *PostgresStore) UpdateUser(ctx context.Context, userID int64, username, displayName string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username=$2, display_name=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, username, displayName)
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update user rows: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserAvatar(ctx context.Context, userID int64, objectName string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET avatar_object=$2, updated_at=NOW() WHERE id=$1`, userID, objectName)
	if err != nil {
		return fmt.Errorf("update user avatar: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user rows: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.display_name, u.password_hash, u.avatar_object, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.AvatarObject, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

const boardColumns = `id, name, owner_id, private, conversation_id, locked_for_editing_by_id, locked_for_editing_on, created_at, updated_at`

func scanBoard(row *sql.Row) (Board, error) {
	var board Board
	err := row.Scan(
		&board.ID,
		&board.Name,
		&board.OwnerID,
		&board.Private,
		&board.ConversationID,
		&board.LockedForEditingByID,
		&board.LockedForEditingOn,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

// CreateBoard inserts the board together with its conversation. The
// owner joins the conversation in the same transaction.
func (s *PostgresStore) CreateBoard(ctx context.Context, name string, ownerID int64, private bool) (Board, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Board{}, fmt.Errorf("begin create board: %w", err)
	}
	defer tx.Rollback()

	var conversationID int64
	if err := tx.QueryRowContext(ctx, `INSERT INTO conversations DEFAULT VALUES RETURNING id`).Scan(&conversationID); err != nil {
		return Board{}, fmt.Errorf("insert conversation: %w", err)
	}

	var board Board
	err = tx.QueryRowContext(ctx, `
		INSERT INTO boards (name, owner_id, private, conversation_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+boardColumns+`
	`, name, ownerID, private, conversationID).Scan(
		&board.ID,
		&board.Name,
		&board.OwnerID,
		&board.Private,
		&board.ConversationID,
		&board.LockedForEditingByID,
		&board.LockedForEditingOn,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, conversationID, ownerID); err != nil {
		return Board{}, fmt.Errorf("insert owner participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Board{}, fmt.Errorf("commit create board: %w", err)
	}
	return board, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID int64) (Board, error) {
	return scanBoard(s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID))
}

func (s *PostgresStore) GetBoardByConversation(ctx context.Context, conversationID int64) (Board, error) {
	return scanBoard(s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE conversation_id=$1`, conversationID))
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID int64, name string, private bool) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET name=$2, private=$3, updated_at=NOW()
		WHERE id=$1
	`, boardID, name, private)
	if err != nil {
		return 0, fmt.Errorf("update board: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update board rows: %w", err)
	}
	return affected, nil
}

// DeleteBoard removes the board and its conversation. Shapes, editors,
// participants and messages go with them through ON DELETE CASCADE.
func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete board: %w", err)
	}
	defer tx.Rollback()

	var conversationID int64
	err = tx.QueryRowContext(ctx, `DELETE FROM boards WHERE id=$1 RETURNING conversation_id`, boardID).Scan(&conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete board: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID); err != nil {
		return 0, fmt.Errorf("delete board conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete board: %w", err)
	}
	return 1, nil
}

func (s *PostgresStore) ListBoardsByUser(ctx context.Context, userID int64) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT b.id, b.name, b.owner_id, b.private, b.conversation_id,
			b.locked_for_editing_by_id, b.locked_for_editing_on, b.created_at, b.updated_at
		FROM boards b
		LEFT JOIN board_editors be ON be.board_id = b.id
		WHERE b.owner_id = $1 OR be.user_id = $1
		ORDER BY b.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerID, &b.Private, &b.ConversationID, &b.LockedForEditingByID, &b.LockedForEditingOn, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListPublicBoardsByOwner(ctx context.Context, ownerID int64) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.owner_id, b.private, b.conversation_id,
			b.locked_for_editing_by_id, b.locked_for_editing_on, b.created_at, b.updated_at
		FROM boards b
		WHERE b.owner_id = $1 AND NOT b.private
		ORDER BY b.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list public boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerID, &b.Private, &b.ConversationID, &b.LockedForEditingByID, &b.LockedForEditingOn, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListBoardEditors(ctx context.Context, boardID int64) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.password_hash, u.avatar_object, u.created_at, u.updated_at
		FROM board_editors be
		JOIN users u ON u.id = be.user_id
		WHERE be.board_id = $1
		ORDER BY u.username
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board editors: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.AvatarObject, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board editor: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board editors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) IsBoardEditor(ctx context.Context, boardID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM board_editors WHERE board_id=$1 AND user_id=$2)
	`, boardID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check board editor: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AddBoardEditor(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_editors (board_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, boardID, userID)
	if err != nil {
		return fmt.Errorf("add board editor: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveBoardEditor(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM board_editors WHERE board_id=$1 AND user_id=$2`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove board editor: %w", err)
	}
	return nil
}

// TryLockBoard acquires or renews the edit lock in a single compare and
// swap. The update only matches when the board is unlocked, already
// held by userID, or the current lock went stale before staleBefore.
// It reports false when another user holds a live lock.
func (s *PostgresStore) TryLockBoard(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET locked_for_editing_by_id=$2, locked_for_editing_on=$3
		WHERE id=$1
			AND (locked_for_editing_by_id IS NULL
				OR locked_for_editing_by_id=$2
				OR locked_for_editing_on < $4)
	`, boardID, userID, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("lock board: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock board rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UnlockBoard(ctx context.Context, boardID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET locked_for_editing_by_id=NULL, locked_for_editing_on=NULL
		WHERE id=$1
	`, boardID)
	if err != nil {
		return fmt.Errorf("unlock board: %w", err)
	}
	return nil
}
