package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CookieName holds the session token of a logged-in viewer.
const CookieName = "qrscan_session"

// Auth checks the station password and tracks issued session tokens.
type Auth struct {
	hash []byte
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	now      func() time.Time
}

// NewAuth hashes password once; only the hash is kept.
func NewAuth(password string, ttl time.Duration) (*Auth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Auth{
		hash:     hash,
		ttl:      ttl,
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Login returns a fresh session token, or false for a wrong password.
func (a *Auth) Login(password string) (string, bool) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", false
	}

	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = a.now().Add(a.ttl)
	a.mu.Unlock()
	return token, true
}

func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Valid reports whether token is known and not expired. Expired tokens are dropped.
func (a *Auth) Valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.sessions[token]
	if !ok {
		return false
	}
	if a.now().After(expiry) {
		delete(a.sessions, token)
		return false
	}
	return true
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/css/") ||
		strings.HasPrefix(path, "/js/")
}

// AuthMiddleware lets requests through when they carry a valid session cookie.
// API and websocket callers get 401, browsers are redirected to /login.
func AuthMiddleware(auth *Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CookieName)
			if err != nil || !auth.Valid(cookie.Value) {
				if strings.HasPrefix(r.URL.Path, "/api/") ||
					r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
					r.Header.Get("Content-Type") == "application/json" {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
