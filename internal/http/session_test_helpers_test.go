package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"evalgate/internal/audit"
	"evalgate/internal/auth"
	"evalgate/internal/config"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	testNow    = time.Unix(1_700_000_000, 0)
	testUser   = auth.Identity{ID: "user-1", Email: "ada@example.com", DisplayName: "Ada"}
)

var testCookieNames = config.CookieNames{
	Access:  "access-token",
	Refresh: "refresh-token",
	Profile: "session-profile",
	Toast:   "auth-toast",
}

type sessionServiceStub struct {
	verify func(ctx context.Context, accessToken string) (auth.Identity, error)
	renew  func(ctx context.Context, refreshToken string) (auth.Session, error)

	mu           sync.Mutex
	verifyCalls  int
	renewCalls   int
	lastVerified string
	lastRenewed  string
}

func (s *sessionServiceStub) Verify(ctx context.Context, accessToken string) (auth.Identity, error) {
	s.mu.Lock()
	s.verifyCalls++
	s.lastVerified = accessToken
	s.mu.Unlock()
	if s.verify == nil {
		return auth.Identity{}, errors.New("unexpected Verify call")
	}
	return s.verify(ctx, accessToken)
}

func (s *sessionServiceStub) Renew(ctx context.Context, refreshToken string) (auth.Session, error) {
	s.mu.Lock()
	s.renewCalls++
	s.lastRenewed = refreshToken
	s.mu.Unlock()
	if s.renew == nil {
		return auth.Session{}, errors.New("unexpected Renew call")
	}
	return s.renew(ctx, refreshToken)
}

func (s *sessionServiceStub) remoteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyCalls + s.renewCalls
}

type decisionRecorderStub struct {
	paths []string
}

func (r *decisionRecorderStub) RecordDecision(path string) {
	r.paths = append(r.paths, path)
}

type eventEmitterStub struct {
	events []audit.Event
}

func (e *eventEmitterStub) Emit(event audit.Event) {
	e.events = append(e.events, event)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCookies() *SessionCookies {
	codec := auth.NewProfileCodec(testSecret, auth.WithCodecClock(fixedClock(testNow)))
	return NewSessionCookies(testCookieNames, codec, 30*24*time.Hour, false)
}

func newTestGate(svc sessionService, opts ...GateOption) *Gate {
	opts = append([]GateOption{WithGateClock(fixedClock(testNow))}, opts...)
	return NewGate(svc, newTestCookies(), "/login", []string{"/static/", "/favicon.ico"}, discardLogger(), opts...)
}

// profileToken signs identity so that it stays trusted for remaining after testNow.
func profileToken(t *testing.T, identity auth.Identity, remaining time.Duration) string {
	t.Helper()
	issuedAt := testNow.Add(remaining - auth.MinTokenLifetime)
	ttl := auth.MinTokenLifetime
	if remaining > auth.MinTokenLifetime {
		issuedAt = testNow
		ttl = remaining
	}
	codec := auth.NewProfileCodec(testSecret, auth.WithCodecClock(fixedClock(issuedAt)))
	token, err := codec.Encode(identity, ttl)
	if err != nil {
		t.Fatalf("encode profile: %v", err)
	}
	return token
}

type requestCookies struct {
	access  string
	refresh string
	profile string
}

func newGateRequest(method, target string, c requestCookies) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if c.access != "" {
		req.AddCookie(&http.Cookie{Name: testCookieNames.Access, Value: c.access})
	}
	if c.refresh != "" {
		req.AddCookie(&http.Cookie{Name: testCookieNames.Refresh, Value: c.refresh})
	}
	if c.profile != "" {
		req.AddCookie(&http.Cookie{Name: testCookieNames.Profile, Value: c.profile})
	}
	return req
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func failure(reason auth.FailureReason) error {
	return &auth.Failure{Reason: reason, Err: errors.New(string(reason))}
}
