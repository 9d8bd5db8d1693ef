package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/repository"
)

// UserService exposes profile operations for the authenticated user.
type UserService interface {
	GetProfile(ctx context.Context, identity auth.Identity) (*model.User, error)
	UpdateProfile(ctx context.Context, identity auth.Identity, patch model.UserPatch) (*model.User, error)
	DeleteProfile(ctx context.Context, identity auth.Identity, password string) error
}

type userService struct {
	repo repository.UserRepository
}

// NewUserService builds a UserService.
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

// GetProfile returns the caller with their orders, items and products.
func (s *userService) GetProfile(ctx context.Context, identity auth.Identity) (*model.User, error) {
	if identity.ID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	user, err := s.repo.FindWithOrders(ctx, identity.ID)
	if err != nil {
		return nil, userLookupError(err)
	}
	if user.Orders == nil {
		user.Orders = []model.Order{}
	}
	return user, nil
}

// UpdateProfile applies each present field of patch independently. Changing
// the password requires the current one.
func (s *userService) UpdateProfile(ctx context.Context, identity auth.Identity, patch model.UserPatch) (*model.User, error) {
	if identity.ID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	if patch.Empty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	user, err := s.repo.FindByID(ctx, identity.ID)
	if err != nil {
		return nil, userLookupError(err)
	}

	updates := make(map[string]interface{}, 3)

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name cannot be empty")
		}
		updates["name"] = name
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if !validEmail(email) {
			return nil, apperrors.InvalidInput("invalid email format")
		}
		if email != user.Email {
			other, err := s.repo.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != user.ID:
				return nil, apperrors.ErrEmailTaken
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, fmt.Errorf("check email: %w", err)
			}
			updates["email"] = email
		}
	}

	if patch.Password != nil {
		if patch.CurrentPassword == nil || *patch.CurrentPassword == "" {
			return nil, apperrors.InvalidInput("current password is required to change password")
		}
		if !auth.CheckPassword(user.PasswordHash, *patch.CurrentPassword) {
			return nil, apperrors.ErrIncorrectPassword
		}
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, user.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.ErrEmailTaken
			}
			return nil, userLookupError(err)
		}
	}

	updated, err := s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, userLookupError(err)
	}
	return updated, nil
}

// DeleteProfile hard-deletes the caller after confirming their password.
func (s *userService) DeleteProfile(ctx context.Context, identity auth.Identity, password string) error {
	if identity.ID == 0 {
		return apperrors.ErrUnauthenticated
	}
	if password == "" {
		return apperrors.InvalidInput("password is required to delete the account")
	}

	user, err := s.repo.FindByID(ctx, identity.ID)
	if err != nil {
		return userLookupError(err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return apperrors.ErrIncorrectPassword
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return userLookupError(err)
	}
	return nil
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return fmt.Errorf("user storage: %w", err)
}
