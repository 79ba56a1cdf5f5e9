package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evalgate/internal/audit"
	"evalgate/internal/auth"
)

// nearExpiryWindow is how close to its signed expiry a cached profile may get
// before the gate renews the session instead of trusting the cache.
const nearExpiryWindow = 90 * time.Second

// Outcome is what the routing layer should do with a request.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeRedirect
)

// Resolution names the gate path that produced a decision.
type Resolution string

const (
	ResolutionPublic        Resolution = "public"
	ResolutionLoginRedirect Resolution = "login_redirect"
	ResolutionFastPath      Resolution = "fast_path"
	ResolutionVerified      Resolution = "verified"
	ResolutionRenewed       Resolution = "renewed"
	ResolutionDegraded      Resolution = "degraded"
	ResolutionDenied        Resolution = "denied"
)

// Decision is the gate's verdict for one request together with the cookies
// that must be written on the response.
type Decision struct {
	Outcome     Outcome
	RedirectURL string
	Resolution  Resolution
	// Identity is nil when the caller could not be identified, which happens
	// on public routes and on degraded sessions without a cached profile.
	Identity *auth.Identity
	Failure  auth.FailureReason
	Cookies  []*http.Cookie
}

// Apply writes the decision's cookies to w.
func (d Decision) Apply(w http.ResponseWriter) {
	for _, cookie := range d.Cookies {
		http.SetCookie(w, cookie)
	}
}

// Degraded reports whether the session was kept despite an unreachable provider.
func (d Decision) Degraded() bool {
	return d.Resolution == ResolutionDegraded
}

type sessionService interface {
	Verify(ctx context.Context, accessToken string) (auth.Identity, error)
	Renew(ctx context.Context, refreshToken string) (auth.Session, error)
}

// DecisionRecorder counts gate decisions by resolution.
type DecisionRecorder interface {
	RecordDecision(path string)
}

type eventEmitter interface {
	Emit(event audit.Event)
}

// Gate decides per request whether the caller is authenticated.
type Gate struct {
	sessions  sessionService
	cookies   *SessionCookies
	loginPath string
	public    []string
	logger    *slog.Logger
	recorder  DecisionRecorder
	events    eventEmitter
	now       func() time.Time
}

// GateOption configures a Gate during construction.
type GateOption func(*Gate)

// WithGateClock overrides the clock used for near-expiry checks.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// WithDecisionRecorder reports every decision to recorder.
func WithDecisionRecorder(recorder DecisionRecorder) GateOption {
	return func(g *Gate) {
		g.recorder = recorder
	}
}

// WithEventEmitter records remote resolutions as auth events.
func WithEventEmitter(events eventEmitter) GateOption {
	return func(g *Gate) {
		g.events = events
	}
}

// NewGate creates a Gate. The login path is always treated as public.
func NewGate(sessions sessionService, cookies *SessionCookies, loginPath string, publicPaths []string, logger *slog.Logger, opts ...GateOption) *Gate {
	public := make([]string, 0, len(publicPaths)+1)
	public = append(public, loginPath)
	for _, p := range publicPaths {
		if p != "" && p != loginPath {
			public = append(public, p)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	g := &Gate{
		sessions:  sessions,
		cookies:   cookies,
		loginPath: loginPath,
		public:    public,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the session state machine for r. It makes at most one remote
// call chain and never writes to the response itself.
func (g *Gate) Evaluate(r *http.Request) Decision {
	d := g.evaluate(r)
	if g.recorder != nil {
		g.recorder.RecordDecision(string(d.Resolution))
	}
	return d
}

// CurrentIdentity returns the caller's identity without contacting the
// identity provider: the identity resolved by the gate middleware for this
// request, or else the one in a trusted profile cookie.
func (g *Gate) CurrentIdentity(r *http.Request) (auth.Identity, bool) {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		return identity, true
	}
	profile, ok := g.cookies.Profile(r)
	if !ok {
		return auth.Identity{}, false
	}
	return profile.Identity(), true
}

func (g *Gate) evaluate(r *http.Request) Decision {
	if g.isPublic(r.URL.Path) {
		if r.URL.Path == g.loginPath {
			return g.evaluateLoginPage(r)
		}
		return Decision{Outcome: OutcomePass, Resolution: ResolutionPublic}
	}

	names := g.cookies.names
	accessToken := cookieValue(r, names.Access)
	if accessToken == "" {
		return g.deny(r, auth.ReasonMissingToken, "", false)
	}
	refreshToken := cookieValue(r, names.Refresh)

	if profile, ok := g.cookies.Profile(r); ok {
		cached := profile.Identity()
		if profile.Expiry().Sub(g.now()) > nearExpiryWindow {
			return Decision{Outcome: OutcomePass, Resolution: ResolutionFastPath, Identity: &cached}
		}
		if refreshToken != "" {
			return g.renew(r, refreshToken, &cached)
		}
	}

	return g.verify(r, accessToken, refreshToken)
}

// evaluateLoginPage sends callers that already hold a session away from the
// login screen and lets everyone else through.
func (g *Gate) evaluateLoginPage(r *http.Request) Decision {
	target := safeNextPath(r.URL.Query().Get("next"))

	if profile, ok := g.cookies.Profile(r); ok {
		identity := profile.Identity()
		return Decision{Outcome: OutcomeRedirect, RedirectURL: target, Resolution: ResolutionLoginRedirect, Identity: &identity}
	}

	accessToken := cookieValue(r, g.cookies.names.Access)
	if accessToken == "" {
		return Decision{Outcome: OutcomePass, Resolution: ResolutionPublic}
	}

	identity, err := g.sessions.Verify(r.Context(), accessToken)
	if err != nil {
		return Decision{Outcome: OutcomePass, Resolution: ResolutionPublic}
	}

	session := g.sessionFor(accessToken, cookieValue(r, g.cookies.names.Refresh), identity)
	return Decision{
		Outcome:     OutcomeRedirect,
		RedirectURL: target,
		Resolution:  ResolutionLoginRedirect,
		Identity:    &identity,
		Cookies:     g.cookies.stampCookies(session),
	}
}

func (g *Gate) verify(r *http.Request, accessToken, refreshToken string) Decision {
	identity, err := g.sessions.Verify(r.Context(), accessToken)
	if err == nil {
		session := g.sessionFor(accessToken, refreshToken, identity)
		g.emit(audit.KindVerified, identity.ID, "", r)
		return Decision{
			Outcome:    OutcomePass,
			Resolution: ResolutionVerified,
			Identity:   &identity,
			Cookies:    g.cookies.stampCookies(session),
		}
	}

	reason := auth.ReasonOf(err)
	if reason.Transient() {
		g.logger.Warn("identity provider unavailable during verify", "path", r.URL.Path, "reason", reason, "error", err)
		return g.degrade(r, reason, nil)
	}
	if refreshToken != "" {
		return g.renew(r, refreshToken, nil)
	}
	return g.deny(r, reason, "", true)
}

// renew attempts a silent renewal. cached is the identity from a still-valid
// profile and is kept if the provider is unreachable.
func (g *Gate) renew(r *http.Request, refreshToken string, cached *auth.Identity) Decision {
	session, err := g.sessions.Renew(r.Context(), refreshToken)
	if err == nil {
		identity := session.Identity
		g.emit(audit.KindRenewed, identity.ID, "", r)
		return Decision{
			Outcome:    OutcomePass,
			Resolution: ResolutionRenewed,
			Identity:   &identity,
			Cookies:    g.cookies.stampCookies(session),
		}
	}

	reason := auth.ReasonOf(err)
	if reason.Transient() {
		g.logger.Warn("identity provider unavailable during renewal", "path", r.URL.Path, "reason", reason, "error", err)
		return g.degrade(r, reason, cached)
	}

	subject := ""
	if cached != nil {
		subject = cached.ID
	}
	return g.deny(r, reason, subject, true)
}

func (g *Gate) degrade(r *http.Request, reason auth.FailureReason, cached *auth.Identity) Decision {
	code := ToastServer
	if reason == auth.ReasonNetworkError {
		code = ToastNetwork
	}

	subject := ""
	if cached != nil {
		subject = cached.ID
	}
	g.emit(audit.KindDegraded, subject, string(reason), r)

	return Decision{
		Outcome:    OutcomePass,
		Resolution: ResolutionDegraded,
		Identity:   cached,
		Failure:    reason,
		Cookies:    []*http.Cookie{g.cookies.toastCookie(code)},
	}
}

// deny redirects to the login page. terminal deletes the session cookies,
// which only happens once the provider has rejected the credentials.
func (g *Gate) deny(r *http.Request, reason auth.FailureReason, subject string, terminal bool) Decision {
	d := Decision{
		Outcome:     OutcomeRedirect,
		RedirectURL: g.loginURL(r),
		Resolution:  ResolutionDenied,
		Failure:     reason,
	}
	if terminal {
		d.Cookies = g.cookies.clearCookies()
		g.logger.Info("session rejected", "path", r.URL.Path, "reason", reason)
		g.emit(audit.KindDenied, subject, string(reason), r)
	}
	return d
}

func (g *Gate) sessionFor(accessToken, refreshToken string, identity auth.Identity) auth.Session {
	return auth.Session{
		Tokens: auth.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    auth.AccessTokenLifetime(accessToken, g.now()),
		},
		Identity: identity,
	}
}

func (g *Gate) loginURL(r *http.Request) string {
	next := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	return g.loginPath + "?" + url.Values{"next": {next}}.Encode()
}

// isPublic matches path against the allowlist. Entries ending in "/" match
// any path below them; other entries match themselves and their subpaths.
func (g *Gate) isPublic(path string) bool {
	for _, prefix := range g.public {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (g *Gate) emit(kind audit.Kind, subject, reason string, r *http.Request) {
	if g.events == nil {
		return
	}
	g.events.Emit(audit.NewEvent(kind, subject, reason, r.URL.Path))
}

func safeNextPath(next string) string {
	if isValidRedirectPath(next) {
		return next
	}
	return "/"
}
