// Package profile manages the user's display name.
package profile

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var (
	ErrEmptyName   = errors.New("name must not be empty")
	ErrNameTooLong = errors.New("name is too long")
)

// MaxNameLength bounds the display name in runes.
const MaxNameLength = 120

// Repository persists profiles.
type Repository interface {
	UpsertName(ctx context.Context, userID, name string) error
}

// Service updates profiles.
type Service struct {
	profiles Repository
}

// NewService creates a profile Service.
func NewService(profiles Repository) *Service {
	return &Service{profiles: profiles}
}

// UpdateName trims and stores the display name for userID.
func (s *Service) UpdateName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ErrEmptyName
	case utf8.RuneCountInString(name) > MaxNameLength:
		return ErrNameTooLong
	}
	if err := s.profiles.UpsertName(ctx, userID, name); err != nil {
		return errors.Wrap(err, "update profile")
	}
	zctx.From(ctx).Info("Profile updated", zap.String("user_id", userID))
	return nil
}
