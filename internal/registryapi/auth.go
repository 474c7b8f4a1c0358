package registryapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the lifetime of tokens issued by Login.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator issues and checks HS256 bearer tokens for mutating routes.
type Authenticator struct {
	secret []byte
	// users maps a user name to a bcrypt password hash
	users map[string]string
	ttl   time.Duration
}

// NewAuthenticator creates an authenticator for the given shared secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: DefaultTokenTTL}
}

// SetUsers enables Login for the given user name to bcrypt hash pairs.
func (a *Authenticator) SetUsers(users map[string]string) {
	a.users = users
}

// SetTokenTTL sets the lifetime of tokens issued by Login.
func (a *Authenticator) SetTokenTTL(ttl time.Duration) {
	if ttl > 0 {
		a.ttl = ttl
	}
}

// HasUsers reports whether Login can succeed for anyone.
func (a *Authenticator) HasUsers() bool {
	return len(a.users) > 0
}

// IssueToken signs a token for subject that expires after ttl
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Login checks a user's password and issues a token for that user.
func (a *Authenticator) Login(user, password string) (string, time.Time, error) {
	hash, ok := a.users[user]
	if !ok || !CheckPassword(password, hash) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(a.ttl)
	token, err := a.IssueToken(user, a.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses a token and returns its subject
func (a *Authenticator) Validate(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		// Only HS256; anything else is an algorithm confusion attempt
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// Require rejects requests without a valid bearer token
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		subject, err := a.Validate(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), subject)))
	})
}

// HashPassword hashes a password with bcrypt. Passwords over 72 bytes are
// rejected since bcrypt ignores the rest.
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", fmt.Errorf("password exceeds maximum length of 72 bytes")
	}
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches a bcrypt hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
