package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Manager binds sessions to visitors through a cookie holding the session id.
type Manager struct {
	store      *Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(store *Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Middleware makes sure every request carries a session id, issuing a new
// cookie when the visitor has none, and refreshes the cookie expiry.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(m.cookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(m.ttl.Seconds()),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), contextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IDFromContext returns the session id stored by Middleware.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func (m *Manager) Load(r *http.Request) (*Session, error) {
	return m.store.Load(r.Context(), IDFromContext(r.Context()))
}

func (m *Manager) Update(r *http.Request, fn func(*Session) error) (*Session, error) {
	return m.store.Update(r.Context(), IDFromContext(r.Context()), fn)
}

// Flash queues a notice for the next rendered page.
func (m *Manager) Flash(r *http.Request, kind, message string) error {
	_, err := m.Update(r, func(s *Session) error {
		s.AddFlash(kind, message)
		return nil
	})
	return err
}
