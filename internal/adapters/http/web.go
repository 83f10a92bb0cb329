package web

import (
	"context"
	"net/http"
	"time"

	"rancho/internal/adapters/email"
	"rancho/internal/adapters/http/middleware"
	"rancho/internal/adapters/http/perf"
	itemStore "rancho/internal/adapters/storage/item"
	sessionStore "rancho/internal/adapters/storage/session"
	"rancho/internal/adapters/upload"
	"rancho/internal/domain/credential"
)

// Stores holds all storage dependencies.
type Stores struct {
	ItemStore    itemStore.Store
	SessionStore sessionStore.Store
	UploadStore  upload.Store
}

// Options configures the HTTP surface. Zero values fall back to sensible defaults
// except Secret and CSRFKey, which must be set.
type Options struct {
	StaticDir string
	UploadDir string

	Secret     credential.Secret
	CSRFKey    []byte
	Secure     bool // TLS in front: Secure cookies and strict CSRF origin checks
	SessionTTL time.Duration
	LoginRate  float64
	LoginBurst int

	Mailer     email.Sender
	AlertEmail string

	SlowRequest time.Duration
	Ping        func(ctx context.Context) error // health check; nil reports healthy
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global options (set by NewMux)
var opts Options

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, o Options, collector *perf.Collector) http.Handler {
	stores = s
	opts = withDefaults(o)
	perfCollector = collector
	middleware.SecureCookies = opts.Secure

	mux := http.NewServeMux()
	registerRoutes(mux)

	// Applied inner to outer: SecurityHeaders -> CSRF -> MethodOverride -> Auth -> Timing -> Mux
	return middleware.Chain(mux,
		middleware.Timing(collector, opts.SlowRequest),
		middleware.Auth(stores.SessionStore),
		middleware.MethodOverride,
		middleware.CSRF(opts.CSRFKey, opts.Secure),
		middleware.SecurityHeaders,
	)
}

func withDefaults(o Options) Options {
	if o.StaticDir == "" {
		o.StaticDir = "static"
	}
	if o.UploadDir == "" {
		o.UploadDir = o.StaticDir + "/uploads"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.LoginRate <= 0 {
		o.LoginRate = 1
	}
	if o.LoginBurst <= 0 {
		o.LoginBurst = 5
	}
	if o.SlowRequest <= 0 {
		o.SlowRequest = 200 * time.Millisecond
	}
	return o
}

// registerRoutes maps every (method, path) pair onto its handler.
func registerRoutes(mux *http.ServeMux) {
	loginLimiter := middleware.NewRateLimiter(opts.LoginRate, opts.LoginBurst)
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}

	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /login", handleLoginForm)
	mux.Handle("POST /login", middleware.RateLimit(loginLimiter)(http.HandlerFunc(handleLogin)))
	mux.HandleFunc("GET /logout", handleLogout)

	mux.Handle("GET /admin", admin(handleAdmin))
	mux.Handle("POST /admin/add", admin(handleAddItem))
	mux.Handle("PUT /admin/status/{id}", admin(handleToggleItem))
	mux.Handle("GET /admin/edit/{id}", admin(handleEditForm))
	mux.Handle("PUT /admin/edit/{id}", admin(handleEditItem))
	mux.Handle("DELETE /admin/delete/{id}", admin(handleDeleteItem))
	mux.Handle("GET /admin/perf", admin(handlePerf))

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", noListing(http.FileServer(http.Dir(opts.UploadDir)))))
	mux.Handle("GET /", noListing(http.FileServer(http.Dir(opts.StaticDir))))
}

// noListing hides directory indexes; only files are served.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
