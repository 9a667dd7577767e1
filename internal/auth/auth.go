package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the signed session token.
	CookieName = "adboard_session"

	sessionTTL = 30 * 24 * time.Hour
)

// Session is the browser-side state: whether the visitor logged in as
// admin, and which password-locked cards they have unlocked.
type Session struct {
	Admin    bool
	Unlocked []string
}

// HasUnlocked reports whether the card id was unlocked in this session.
func (s *Session) HasUnlocked(id string) bool {
	for _, u := range s.Unlocked {
		if u == id {
			return true
		}
	}
	return false
}

// AddUnlocked records an unlocked card id, once.
func (s *Session) AddUnlocked(id string) {
	if !s.HasUnlocked(id) {
		s.Unlocked = append(s.Unlocked, id)
	}
}

type sessionClaims struct {
	Admin    bool     `json:"admin,omitempty"`
	Unlocked []string `json:"unlocked,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with the application secret
// and checks the static admin key.
type Manager struct {
	secret   []byte
	adminKey string
}

func NewManager(secretKey, adminKey string) *Manager {
	return &Manager{secret: []byte(secretKey), adminKey: adminKey}
}

// AdminEnabled reports whether an admin key is configured at all.
func (m *Manager) AdminEnabled() bool {
	return m.adminKey != ""
}

// VerifyAdminKey compares the submitted key against the configured one
// in constant time. Always false when no key is configured.
func (m *Manager) VerifyAdminKey(key string) bool {
	if m.adminKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.adminKey)) == 1
}

// Sign encodes the session as an HS256 JWT.
func (m *Manager) Sign(s *Session) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Admin:    s.Admin,
		Unlocked: s.Unlocked,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the token and returns the session it carries.
func (m *Manager) Parse(token string) (*Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return &Session{Admin: claims.Admin, Unlocked: claims.Unlocked}, nil
}

// FromRequest reads the session cookie. A missing or invalid cookie
// yields a fresh anonymous session, never an error.
func (m *Manager) FromRequest(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return &Session{}
	}
	s, err := m.Parse(c.Value)
	if err != nil {
		return &Session{}
	}
	return s
}

// Write stores the session in the response cookie.
func (m *Manager) Write(w http.ResponseWriter, s *Session) error {
	token, err := m.Sign(s)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
