package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type providerStub struct {
	verifyFn  func(ctx context.Context, accessToken string) (Identity, error)
	refreshFn func(ctx context.Context, refreshToken string) (RefreshResult, error)

	verifyCalls  []string
	refreshCalls []string
}

func (s *providerStub) Verify(ctx context.Context, accessToken string) (Identity, error) {
	s.verifyCalls = append(s.verifyCalls, accessToken)
	if s.verifyFn == nil {
		return Identity{}, errors.New("unexpected Verify call")
	}
	return s.verifyFn(ctx, accessToken)
}

func (s *providerStub) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	s.refreshCalls = append(s.refreshCalls, refreshToken)
	if s.refreshFn == nil {
		return RefreshResult{}, errors.New("unexpected Refresh call")
	}
	return s.refreshFn(ctx, refreshToken)
}

func TestServiceRenewUsesReturnedUser(t *testing.T) {
	user := testIdentity()
	stub := &providerStub{
		refreshFn: func(context.Context, string) (RefreshResult, error) {
			return RefreshResult{
				Tokens:   TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: time.Hour},
				Identity: &user,
			}, nil
		},
	}

	session, err := NewService(stub).Renew(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Renew returned error: %v", err)
	}
	if session.Identity != user {
		t.Fatalf("unexpected identity %+v", session.Identity)
	}
	if session.Tokens.AccessToken != "access-2" || session.Tokens.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected tokens %+v", session.Tokens)
	}
	if len(stub.verifyCalls) != 0 {
		t.Fatalf("expected no verify call, got %v", stub.verifyCalls)
	}
}

func TestServiceRenewVerifiesNewAccessTokenOnce(t *testing.T) {
	stub := &providerStub{
		refreshFn: func(context.Context, string) (RefreshResult, error) {
			return RefreshResult{Tokens: TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: time.Hour}}, nil
		},
		verifyFn: func(_ context.Context, token string) (Identity, error) {
			return testIdentity(), nil
		},
	}

	session, err := NewService(stub).Renew(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Renew returned error: %v", err)
	}
	if len(stub.verifyCalls) != 1 || stub.verifyCalls[0] != "access-2" {
		t.Fatalf("expected exactly one verify of the new access token, got %v", stub.verifyCalls)
	}
	if session.Identity.ID != "user-1" {
		t.Fatalf("unexpected identity %+v", session.Identity)
	}
}

func TestServiceRenewPropagatesChainedVerifyReason(t *testing.T) {
	stub := &providerStub{
		refreshFn: func(context.Context, string) (RefreshResult, error) {
			return RefreshResult{Tokens: TokenPair{AccessToken: "access-2", ExpiresIn: time.Hour}}, nil
		},
		verifyFn: func(context.Context, string) (Identity, error) {
			return Identity{}, fail(ReasonNetworkError, errors.New("connection reset"))
		},
	}

	_, err := NewService(stub).Renew(context.Background(), "refresh-1")
	if ReasonOf(err) != ReasonNetworkError {
		t.Fatalf("expected network_error, got %v", err)
	}
	if len(stub.verifyCalls) != 1 {
		t.Fatalf("expected one verify call, got %d", len(stub.verifyCalls))
	}
}

func TestServiceRenewReturnsRefreshFailure(t *testing.T) {
	stub := &providerStub{
		refreshFn: func(context.Context, string) (RefreshResult, error) {
			return RefreshResult{}, fail(ReasonInvalidToken, errors.New("revoked"))
		},
	}

	_, err := NewService(stub).Renew(context.Background(), "refresh-1")
	if ReasonOf(err) != ReasonInvalidToken {
		t.Fatalf("expected invalid_token, got %v", err)
	}
	if len(stub.verifyCalls) != 0 {
		t.Fatalf("expected no verify call after a failed refresh, got %v", stub.verifyCalls)
	}
}

func TestServiceVerifyDelegates(t *testing.T) {
	stub := &providerStub{
		verifyFn: func(context.Context, string) (Identity, error) {
			return Identity{}, fail(ReasonExpiredToken, nil)
		},
	}

	_, err := NewService(stub).Verify(context.Background(), "access-1")
	if ReasonOf(err) != ReasonExpiredToken {
		t.Fatalf("expected expired_token, got %v", err)
	}
}
