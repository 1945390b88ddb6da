package mockapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/password"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	// SessionCookie is the name of the backend session cookie.
	SessionCookie = "donor_session"

	sessionKeyUserID = "uid"
	maxBodyBytes     = 1 << 16
)

// Config configures a [Server].
type Config struct {
	// SessionSecret signs the session cookie. Required.
	SessionSecret []byte
	SessionMaxAge time.Duration

	// LoginPerMinute and LoginBurst bound login attempts per client IP.
	LoginPerMinute float64
	LoginBurst     int

	// Hasher hashes stored passwords; nil selects password.DefaultConfig().
	Hasher *password.Hasher
	Logger *slog.Logger
	Now    func() time.Time
}

type account struct {
	profile donorAuth.Profile
	hash    string
}

// Server is the in-memory backend. It is safe for concurrent use.
type Server struct {
	mu       sync.RWMutex
	accounts map[string]*account // by email
	byID     map[string]string   // id -> email
	failures map[string]int      // "METHOD /path" -> status

	cookies *sessions.CookieStore
	limiter *loginLimiter
	hasher  *password.Hasher
	logger  *slog.Logger
	router  chi.Router
}

// New validates cfg and returns a Server with no accounts.
func New(cfg Config) (*Server, error) {
	if len(cfg.SessionSecret) == 0 {
		return nil, errors.New("session secret required")
	}
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 24 * time.Hour
	}
	if cfg.LoginPerMinute <= 0 {
		cfg.LoginPerMinute = 30
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hasher == nil {
		h, err := password.NewHasher(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		cfg.Hasher = h
	}

	cookies := sessions.NewCookieStore(cfg.SessionSecret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		accounts: make(map[string]*account),
		byID:     make(map[string]string),
		failures: make(map[string]int),
		cookies:  cookies,
		limiter:  newLoginLimiter(cfg.LoginPerMinute, cfg.LoginBurst, cfg.Now),
		hasher:   cfg.Hasher,
		logger:   cfg.Logger,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.injectedFailures)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/profile", s.handleGetProfile)
		r.Patch("/profile", s.handleUpdateProfile)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

/* ==== ADMINISTRATION ==== */

// SetStatus changes the status of the account with email.
func (s *Server) SetStatus(email string, status donorAuth.ProfileStatus) bool {
	return s.mutate(email, func(a *account) { a.profile.Status = status })
}

// SetRole changes the role of the account with email.
func (s *Server) SetRole(email string, role donorAuth.Role) bool {
	return s.mutate(email, func(a *account) { a.profile.Role = role })
}

// FailNext makes the next request to method+path answer status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	s.failures[method+" "+path] = status
	s.mu.Unlock()
}

// Profile returns the stored profile for email.
func (s *Server) Profile(email string) (donorAuth.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return donorAuth.Profile{}, false
	}
	return a.profile, true
}

func (s *Server) mutate(email string, fn func(*account)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if ok {
		fn(a)
	}
	return ok
}

/* ==== MIDDLEWARE ==== */

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ww.Header().Set("X-Request-ID", id)
		}
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("mock api request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) injectedFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		status, ok := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()
		if ok {
			writeMessage(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.sessionAccount(r); !ok {
			writeMessage(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

/* ==== HELPERS ==== */

// sessionAccount resolves the session cookie to a copy of the account.
func (s *Server) sessionAccount(r *http.Request) (account, bool) {
	sess, err := s.cookies.Get(r, SessionCookie)
	if err != nil {
		return account{}, false
	}
	id, ok := sess.Values[sessionKeyUserID].(string)
	if !ok || id == "" {
		return account{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.byID[id]
	if !ok {
		return account{}, false
	}
	return *s.accounts[email], true
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id string) error {
	sess, _ := s.cookies.Get(r, SessionCookie)
	sess.Values[sessionKeyUserID] = id
	return sess.Save(r, w)
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
