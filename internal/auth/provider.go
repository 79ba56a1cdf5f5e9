package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IdentityProvider is the remote side of session verification.
type IdentityProvider interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
	Refresh(ctx context.Context, refreshToken string) (RefreshResult, error)
}

// CallObserver receives the outcome of each remote call. reason is empty on success.
type CallObserver interface {
	ObserveProviderCall(operation string, reason FailureReason, elapsed time.Duration)
}

const (
	OperationVerify  = "verify"
	OperationRefresh = "refresh"

	maxProviderBodyBytes = 64 << 10
)

// RemoteVerifier validates tokens against the identity provider's REST API.
type RemoteVerifier struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	observer CallObserver
	now      func() time.Time
}

// VerifierOption configures a RemoteVerifier during construction.
type VerifierOption func(*RemoteVerifier)

// WithCallObserver reports every remote call to observer.
func WithCallObserver(observer CallObserver) VerifierOption {
	return func(v *RemoteVerifier) {
		v.observer = observer
	}
}

// WithVerifierClock overrides the clock used to size token lifetimes.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *RemoteVerifier) {
		v.now = now
	}
}

// NewRemoteVerifier creates a verifier for the provider rooted at baseURL.
// The client's timeout bounds every remote call.
func NewRemoteVerifier(client *http.Client, baseURL, apiKey string, opts ...VerifierOption) *RemoteVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	v := &RemoteVerifier{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type providerUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name      string `json:"name"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u providerUser) identity() (Identity, bool) {
	id := strings.TrimSpace(u.ID)
	if id == "" {
		return Identity{}, false
	}
	name := strings.TrimSpace(u.UserMetadata.Name)
	if name == "" {
		name = strings.TrimSpace(u.UserMetadata.FullName)
	}
	return Identity{
		ID:          id,
		Email:       strings.TrimSpace(u.Email),
		DisplayName: name,
		AvatarURL:   strings.TrimSpace(u.UserMetadata.AvatarURL),
	}, true
}

type providerTokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *providerUser `json:"user"`
}

type providerError struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// Verify resolves the identity that owns accessToken.
func (v *RemoteVerifier) Verify(ctx context.Context, accessToken string) (identity Identity, err error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, fail(ReasonMissingToken, nil)
	}

	start := time.Now()
	defer func() { v.observe(OperationVerify, err, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, fail(ReasonUnknownError, fmt.Errorf("create user request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	v.setAPIKey(req)

	body, err := v.do(req)
	if err != nil {
		return Identity{}, err
	}

	var user providerUser
	if err := json.Unmarshal(body, &user); err != nil {
		return Identity{}, fail(ReasonUnknownError, fmt.Errorf("decode user response: %w", err))
	}
	identity, ok := user.identity()
	if !ok {
		return Identity{}, fail(ReasonUnknownError, errors.New("user response has no subject id"))
	}
	return identity, nil
}

// Refresh exchanges refreshToken for a new token pair.
func (v *RemoteVerifier) Refresh(ctx context.Context, refreshToken string) (result RefreshResult, err error) {
	if strings.TrimSpace(refreshToken) == "" {
		return RefreshResult{}, fail(ReasonMissingToken, nil)
	}

	start := time.Now()
	defer func() { v.observe(OperationRefresh, err, time.Since(start)) }()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return RefreshResult{}, fail(ReasonUnknownError, fmt.Errorf("encode refresh request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/auth/v1/token?grant_type=refresh_token", bytes.NewReader(payload))
	if err != nil {
		return RefreshResult{}, fail(ReasonUnknownError, fmt.Errorf("create refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	v.setAPIKey(req)

	body, err := v.do(req)
	if err != nil {
		return RefreshResult{}, err
	}

	var tokens providerTokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return RefreshResult{}, fail(ReasonUnknownError, fmt.Errorf("decode token response: %w", err))
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return RefreshResult{}, fail(ReasonUnknownError, errors.New("token response has no access token"))
	}

	// Providers that do not rotate refresh tokens omit the field.
	nextRefresh := tokens.RefreshToken
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}

	expiresIn := time.Duration(tokens.ExpiresIn) * time.Second
	if tokens.ExpiresIn <= 0 {
		expiresIn = AccessTokenLifetime(tokens.AccessToken, v.now())
	}

	result = RefreshResult{
		Tokens: TokenPair{
			AccessToken:  tokens.AccessToken,
			RefreshToken: nextRefresh,
			ExpiresIn:    floorLifetime(expiresIn),
		},
	}
	if tokens.User != nil {
		if identity, ok := tokens.User.identity(); ok {
			result.Identity = &identity
		}
	}
	return result, nil
}

// do sends req and returns the body of a 2xx response. Every other outcome is
// classified into a *Failure.
func (v *RemoteVerifier) do(req *http.Request) ([]byte, error) {
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fail(ReasonNetworkError, fmt.Errorf("call identity provider: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return nil, fail(ReasonNetworkError, fmt.Errorf("read identity provider response: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fail(ReasonAuthServerError, fmt.Errorf("identity provider returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fail(classifyRejection(body), fmt.Errorf("identity provider rejected credentials with status %d", resp.StatusCode))
	default:
		return nil, fail(ReasonUnknownError, fmt.Errorf("identity provider returned unexpected status %d", resp.StatusCode))
	}
}

// classifyRejection decides between an expired and an invalid credential.
// A structured error code wins; free-form text is the fallback.
func classifyRejection(body []byte) FailureReason {
	var perr providerError
	if err := json.Unmarshal(body, &perr); err != nil {
		if mentionsExpiry(string(body)) {
			return ReasonExpiredToken
		}
		return ReasonInvalidToken
	}

	if code := strings.ToLower(strings.TrimSpace(perr.ErrorCode)); code != "" {
		if _, ok := expiredErrorCodes[code]; ok {
			return ReasonExpiredToken
		}
		if _, ok := invalidErrorCodes[code]; ok {
			return ReasonInvalidToken
		}
	}

	for _, text := range []string{perr.Msg, perr.Message, perr.ErrorDescription, perr.Error} {
		if mentionsExpiry(text) {
			return ReasonExpiredToken
		}
	}
	return ReasonInvalidToken
}

var expiredErrorCodes = map[string]struct{}{
	"session_expired":       {},
	"token_expired":         {},
	"refresh_token_expired": {},
}

var invalidErrorCodes = map[string]struct{}{
	"session_not_found":          {},
	"refresh_token_not_found":    {},
	"refresh_token_already_used": {},
	"user_not_found":             {},
	"user_banned":                {},
	"no_authorization":           {},
}

func mentionsExpiry(text string) bool {
	return strings.Contains(strings.ToLower(text), "expired")
}

func (v *RemoteVerifier) setAPIKey(req *http.Request) {
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}
}

func (v *RemoteVerifier) observe(operation string, err error, elapsed time.Duration) {
	if v.observer == nil {
		return
	}
	v.observer.ObserveProviderCall(operation, ReasonOf(err), elapsed)
}
