package sessions

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	// CookieName is the cookie carrying the signed session id
	CookieName = "sid"

	cookieIssuer  = "go-oauth20/session"
	cookieKeyInfo = "session-cookie-v1"
)

var errInvalidCookie = errors.New("sessions: invalid session cookie")

// CookieCodec signs session ids into the session cookie and verifies them on the way back.
type CookieCodec struct {
	key    []byte
	secure bool
	maxAge time.Duration
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewCookieCodec derives the signing key from secret with HKDF-SHA256.
// maxAge should match the store's idle timeout.
func NewCookieCodec(secret string, secure bool, maxAge time.Duration) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("sessions: cookie secret is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("sessions: derive cookie key: %w", err)
	}
	return &CookieCodec{key: key, secure: secure, maxAge: maxAge}, nil
}

// Encode returns the signed cookie value for sessionID.
func (c *CookieCodec) Encode(sessionID string) (string, error) {
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   cookieIssuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sessions: sign cookie: %w", err)
	}
	return value, nil
}

// Decode verifies a cookie value and returns the session id inside it.
func (c *CookieCodec) Decode(value string) (string, error) {
	var claims cookieClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidCookie, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errInvalidCookie
	}
	return claims.SessionID, nil
}

// Write issues the session cookie for sessionID.
func (c *CookieCodec) Write(w http.ResponseWriter, sessionID string) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.maxAge.Seconds()),
	})
	return nil
}

// Read returns the verified session id from the request, if any.
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	sessionID, err := c.Decode(cookie.Value)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// Clear removes the session cookie from the client.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
