package user

import (
	"context"
	"fmt"

	"github.com/carematch/carematch-api/internal/domain"
)

// Service covers the account mutations this core owns: profile completion and
// phone-identifier linking. Everything else about a user belongs to the
// booking CRUD layer.
type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	CompleteProfile(ctx context.Context, userID string, req domain.CompleteProfileRequest) (*domain.User, error)
	LinkPhone(ctx context.Context, userID string, req domain.LinkPhoneRequest) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type phoneLinker interface {
	LinkPhone(ctx context.Context, userID, countryCode, phoneNumber string) (*domain.User, error)
}

type codeVerifier interface {
	Verify(countryCode, phoneNumber, candidate string) bool
}

type service struct {
	store    userStore
	resolver phoneLinker
	codes    codeVerifier
}

func NewService(store userStore, resolver phoneLinker, codes codeVerifier) Service {
	return &service{store: store, resolver: resolver, codes: codes}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.Get(ctx, userID)
}

// CompleteProfile sets display fields and flips profile_completed. Only
// identity-adjacent fields are written; concurrent edits to booking-profile
// fields elsewhere stay untouched.
func (s *service) CompleteProfile(ctx context.Context, userID string, req domain.CompleteProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{
		"name":              req.Name,
		"profile_completed": true,
	}
	if req.AvatarURL != "" {
		updates["avatar_url"] = req.AvatarURL
	}
	if err := s.store.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, userID)
}

// LinkPhone attaches a phone identifier to the account after the usual code
// verification, so a password or WeChat account becomes reachable by phone.
func (s *service) LinkPhone(ctx context.Context, userID string, req domain.LinkPhoneRequest) (*domain.User, error) {
	if !s.codes.Verify(req.CountryCode, req.PhoneNumber, req.Code) {
		return nil, fmt.Errorf("phone link rejected: %w", domain.ErrCodeInvalid)
	}
	return s.resolver.LinkPhone(ctx, userID, req.CountryCode, req.PhoneNumber)
}
