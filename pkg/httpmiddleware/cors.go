package httpmiddleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Request headers the storefront clients always send cross-origin.
var storefrontRequestHeaders = []string{"Content-Type", "api_key", ShopperHeader, RequestIDHeader}

// Response headers the web app reads.
var storefrontExposeHeaders = []string{
	RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
}

// CORSConfig configures CORS for the storefront web app.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	// An entry like "https://*.thriftx.shop" allows every subdomain, which
	// covers preview deploys.
	AllowOrigins []string

	// AllowMethods defaults to every method the API routes.
	AllowMethods []string

	// AllowHeaders is added to the storefront request headers.
	AllowHeaders []string

	// ExposeHeaders is added to the storefront response headers.
	ExposeHeaders []string

	// AllowCredentials disables the "*" response; the origin is echoed.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, negative sends "0".
	MaxAge int
}

type corsPolicy struct {
	any         bool
	credentials bool
	exact       map[string]string
	suffixes    []originSuffix

	methods string
	headers string
	expose  string
	maxAge  string
}

// originSuffix matches "scheme://*.domain" entries.
type originSuffix struct {
	scheme string
	domain string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		any:         len(cfg.AllowOrigins) == 0,
		credentials: cfg.AllowCredentials,
		exact:       make(map[string]string, len(cfg.AllowOrigins)),
		methods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		headers:     strings.Join(dedupe(storefrontRequestHeaders, cfg.AllowHeaders), ", "),
		expose:      strings.Join(dedupe(storefrontExposeHeaders, cfg.ExposeHeaders), ", "),
	}
	for _, o := range cfg.AllowOrigins {
		switch scheme, rest, _ := strings.Cut(o, "://"); {
		case o == "*":
			p.any = true
		case strings.HasPrefix(rest, "*."):
			p.suffixes = append(p.suffixes, originSuffix{
				scheme: strings.ToLower(scheme),
				domain: strings.ToLower(rest[1:]),
			})
		default:
			p.exact[strings.ToLower(o)] = o
		}
	}
	if len(cfg.AllowMethods) > 0 {
		p.methods = strings.Join(cfg.AllowMethods, ", ")
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.any {
		if p.credentials {
			return origin
		}
		return "*"
	}
	lower := strings.ToLower(origin)
	if o, ok := p.exact[lower]; ok {
		return o
	}
	scheme, host, ok := strings.Cut(lower, "://")
	if !ok {
		return ""
	}
	for _, s := range p.suffixes {
		if s.scheme == scheme && strings.HasSuffix(host, s.domain) && len(host) > len(s.domain) {
			return origin
		}
	}
	return ""
}

// CORS answers preflights with 204 and decorates actual requests with the
// CORS response headers. Preflights are recognised by
// Access-Control-Request-Method.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if !p.any || p.credentials {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := p.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allow != "" {
					h.Set("Access-Control-Allow-Origin", allow)
					h.Set("Access-Control-Allow-Methods", p.methods)
					h.Set("Access-Control-Allow-Headers", p.headers)
					if p.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				h.Set("Access-Control-Expose-Headers", p.expose)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// dedupe appends extra to base, skipping case-insensitive duplicates.
func dedupe(base, extra []string) []string {
	out := slices.Clone(base)
	for _, v := range extra {
		if !slices.ContainsFunc(out, func(o string) bool { return strings.EqualFold(o, v) }) {
			out = append(out, v)
		}
	}
	return out
}
