package auth

import "time"

// Identity is a caller identity confirmed by the identity provider.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Valid reports whether the identity carries a subject id.
func (i Identity) Valid() bool {
	return i.ID != ""
}

// MinTokenLifetime is the shortest lifetime assigned to a token pair or profile.
const MinTokenLifetime = 60 * time.Second

// TokenPair holds the provider-issued access and refresh credentials.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Session is a token pair whose owner has been confirmed.
type Session struct {
	Tokens   TokenPair
	Identity Identity
}

// RefreshResult is the outcome of a refresh-token exchange. Identity is nil
// when the provider did not return the user alongside the new tokens.
type RefreshResult struct {
	Tokens   TokenPair
	Identity *Identity
}

func floorLifetime(d time.Duration) time.Duration {
	if d < MinTokenLifetime {
		return MinTokenLifetime
	}
	return d
}
