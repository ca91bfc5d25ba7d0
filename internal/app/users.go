package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"pinpal/api/internal/authpw"
	"pinpal/api/internal/store"
	"pinpal/api/internal/util"
	"pinpal/api/internal/validate"
)

// Profile is a user together with the boards visible to the caller.
type Profile struct {
	User   store.User
	Boards []store.Board
}

func (s *Service) GetProfile(ctx context.Context, session Session, username string) (Profile, error) {
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		return Profile{}, err
	}

	var boards []store.Board
	if user.ID == session.UserID {
		boards, err = s.store.ListBoardsByUser(ctx, user.ID)
	} else {
		boards, err = s.store.ListPublicBoardsByOwner(ctx, user.ID)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("list boards: %w", err)
	}
	return Profile{User: user, Boards: boards}, nil
}

type ProfileInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, input ProfileInput) (store.User, error) {
	fields := make(map[string]string)
	if !validate.Username(input.Username) {
		fields["username"] = "Username must be 1-64 characters of letters, digits, dashes or underscores."
	}
	if !validate.DisplayName(input.DisplayName) {
		fields["displayName"] = "Display name must be 1-64 characters without surrounding whitespace."
	}
	if len(fields) > 0 {
		return store.User{}, validationError(fields)
	}

	if input.Username != session.Username {
		_, err := s.store.GetUserByUsername(ctx, input.Username)
		if err == nil {
			return store.User{}, conflictError("Username is already taken.")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.User{}, fmt.Errorf("check username: %w", err)
		}
	}

	affected, err := s.store.UpdateUser(ctx, session.UserID, input.Username, input.DisplayName)
	if err != nil {
		return store.User{}, fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return store.User{}, notFoundError("User not found.")
	}
	return s.store.GetUserByID(ctx, session.UserID)
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Service) ChangePassword(ctx context.Context, session Session, input ChangePasswordInput) error {
	if !validate.Password(input.NewPassword) {
		return validationError(map[string]string{
			"newPassword": "Password is required and may not exceed 2048 characters.",
		})
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	err = s.passwords.ChangePassword(ctx, user, input.CurrentPassword, input.NewPassword)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Current password is incorrect.")
	}
	return err
}

func (s *Service) DeleteAccount(ctx context.Context, session Session) error {
	affected, err := s.store.DeleteUser(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return notFoundError("User not found.")
	}
	return s.Logout(ctx, session, "")
}

func (s *Service) UploadAvatar(ctx context.Context, session Session, data []byte, contentType string) error {
	if s.avatars == nil {
		return domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "Avatar storage is not configured.")
	}
	if !validate.ImageFile(data) {
		return validationError(map[string]string{
			"avatar": "Avatar must be a JPEG, PNG or GIF image of at most 512000 bytes.",
		})
	}

	objectName := fmt.Sprintf("avatars/%d/%s", session.UserID, util.NewID(""))
	if err := s.avatars.Put(ctx, objectName, data, contentType); err != nil {
		return fmt.Errorf("store avatar: %w", err)
	}
	if err := s.store.UpdateUserAvatar(ctx, session.UserID, objectName); err != nil {
		return fmt.Errorf("update avatar reference: %w", err)
	}
	return nil
}

func (s *Service) GetAvatar(ctx context.Context, username string) ([]byte, string, error) {
	if s.avatars == nil {
		return nil, "", notFoundError("Avatar not found.")
	}
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if user.AvatarObject == "" {
		return nil, "", notFoundError("Avatar not found.")
	}
	data, contentType, err := s.avatars.Get(ctx, user.AvatarObject)
	if err != nil {
		return nil, "", fmt.Errorf("fetch avatar: %w", err)
	}
	return data, contentType, nil
}

func (s *Service) getUserByUsername(ctx context.Context, username string) (store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, notFoundError("User not found.")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
