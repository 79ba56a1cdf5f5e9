package http

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Headers the gateway sets on proxied requests. Client-supplied values are
// always removed first.
const (
	HeaderSubject  = "X-Auth-Subject"
	HeaderEmail    = "X-Auth-Email"
	HeaderName     = "X-Auth-Name"
	HeaderDegraded = "X-Auth-Degraded"
)

// NewUpstreamProxy forwards gated requests to the platform at target, passing
// the resolved identity along as request headers.
func NewUpstreamProxy(target *url.URL, logger *slog.Logger) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			for _, h := range []string{HeaderSubject, HeaderEmail, HeaderName, HeaderDegraded} {
				pr.Out.Header.Del(h)
			}

			d, ok := DecisionFromContext(pr.In.Context())
			if !ok {
				return
			}
			if d.Identity != nil {
				pr.Out.Header.Set(HeaderSubject, d.Identity.ID)
				if d.Identity.Email != "" {
					pr.Out.Header.Set(HeaderEmail, d.Identity.Email)
				}
				if d.Identity.DisplayName != "" {
					pr.Out.Header.Set(HeaderName, d.Identity.DisplayName)
				}
			}
			if d.Degraded() {
				pr.Out.Header.Set(HeaderDegraded, string(d.Failure))
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}
	return proxy
}
