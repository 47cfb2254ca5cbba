package service

import (
	"context"
	"strings"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/types"
)

// UserStore interface for user and user-wallet link operations
type UserStore interface {
	RegisterUser(ctx context.Context, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
	LinkAddress(ctx context.Context, userID, address string) error
	UnlinkAddress(ctx context.Context, userID, address string) error
	DeleteUser(ctx context.Context, userID string) error
	ListAddresses(ctx context.Context, userID string) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// UserService validates user and address input before touching the store
type UserService struct {
	users UserStore
	cache ReportCache
}

// NewUserService creates a new user service. cache may be nil.
func NewUserService(users UserStore, cache ReportCache) *UserService {
	return &UserService{users: users, cache: cache}
}

// ValidateUserID trims the id and rejects an empty one
func ValidateUserID(userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", apperrors.NewInvalidParameterError("userId", "must not be empty")
	}
	return id, nil
}

// ValidateAddress returns the storage form of address, or an
// INVALID_ADDRESS error when it matches no supported chain family
func ValidateAddress(address string) (string, error) {
	if types.DetectChainFamily(address) == types.FamilyUnknown {
		return "", apperrors.NewInvalidAddressError(address)
	}
	return types.NormalizeAddress(address), nil
}

// RegisterUser creates the user if missing
func (s *UserService) RegisterUser(ctx context.Context, userID string) error {
	id, err := ValidateUserID(userID)
	if err != nil {
		return err
	}
	return s.users.RegisterUser(ctx, id)
}

// LinkAddress links a wallet to the user and returns the stored address.
// Linking an already linked address is a no-op.
func (s *UserService) LinkAddress(ctx context.Context, userID, address string) (string, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return "", err
	}
	addr, err := ValidateAddress(address)
	if err != nil {
		return "", err
	}
	if err := s.users.LinkAddress(ctx, id, addr); err != nil {
		return "", err
	}
	s.invalidate(ctx, id)
	return addr, nil
}

// UnlinkAddress removes the link only. The wallet row and other users'
// links are kept. Unlinking an address that is not linked is a no-op.
func (s *UserService) UnlinkAddress(ctx context.Context, userID, address string) error {
	id, err := ValidateUserID(userID)
	if err != nil {
		return err
	}
	addr, err := ValidateAddress(address)
	if err != nil {
		// never linkable, so there is no link to remove
		return nil
	}
	if err := s.users.UnlinkAddress(ctx, id, addr); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// DeleteUser removes the user with its links, rollup and spam filter.
// Deleting a missing user is a no-op.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	id, err := ValidateUserID(userID)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// ListAddresses returns the user's linked addresses in no particular order
func (s *UserService) ListAddresses(ctx context.Context, userID string) ([]string, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.users.ListAddresses(ctx, id)
}

// ListUsers returns every registered user id
func (s *UserService) ListUsers(ctx context.Context) ([]string, error) {
	return s.users.ListUsers(ctx)
}

// UserExists reports whether the user is registered
func (s *UserService) UserExists(ctx context.Context, userID string) (bool, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return false, err
	}
	return s.users.UserExists(ctx, id)
}

// invalidate drops cached reports. Chain breakdowns follow the links
// directly, so they go stale as soon as a link changes.
func (s *UserService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		logging.FromContext(ctx).WithComponent("users").
			WithField("user", userID).WithError(err).Warn("Failed to invalidate report cache")
	}
}
