package auth

import (
	"context"
	"fmt"
)

// Service composes remote verification and refresh into session renewal.
type Service struct {
	provider IdentityProvider
}

// NewService creates a new auth Service.
func NewService(provider IdentityProvider) *Service {
	return &Service{provider: provider}
}

// Verify confirms the identity behind accessToken.
func (s *Service) Verify(ctx context.Context, accessToken string) (Identity, error) {
	return s.provider.Verify(ctx, accessToken)
}

// Renew exchanges refreshToken for a new token pair and confirms its owner.
// When the provider does not return the user with the tokens, the new access
// token is verified once; a renewal without a known identity is a failure.
func (s *Service) Renew(ctx context.Context, refreshToken string) (Session, error) {
	result, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}

	if result.Identity != nil && result.Identity.Valid() {
		return Session{Tokens: result.Tokens, Identity: *result.Identity}, nil
	}

	identity, err := s.provider.Verify(ctx, result.Tokens.AccessToken)
	if err != nil {
		return Session{}, &Failure{Reason: ReasonOf(err), Err: fmt.Errorf("confirm renewed session: %w", err)}
	}
	return Session{Tokens: result.Tokens, Identity: identity}, nil
}
