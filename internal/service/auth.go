package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/msomdec/drive-tagger/internal/domain"
	"golang.org/x/crypto/hkdf"
)

const DefaultSessionTTL = 24 * time.Hour

// AuthService runs the OAuth sign-in, stores the resulting drive credentials
// in a server-side session and issues a JWT naming that session.
type AuthService struct {
	sessions   domain.SessionRepository
	provider   domain.IdentityProvider
	access     *AccessPolicy
	jwtKey     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new AuthService. The JWT signing key is derived
// from secret, so the raw secret never signs anything itself.
func NewAuthService(sessions domain.SessionRepository, provider domain.IdentityProvider, access *AccessPolicy, secret string, sessionTTL time.Duration) (*AuthService, error) {
	key, err := deriveKey(secret, "drive-tagger session jwt")
	if err != nil {
		return nil, fmt.Errorf("derive jwt key: %w", err)
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		sessions:   sessions,
		provider:   provider,
		access:     access,
		jwtKey:     key,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}, nil
}

// SessionTTL is how long an issued session stays valid.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// BeginLogin returns the provider URL to redirect to and the state token the
// callback must echo back.
func (s *AuthService) BeginLogin() (redirectURL, state string) {
	state = uuid.NewString()
	return s.provider.AuthCodeURL(state), state
}

// CompleteLogin exchanges the callback for an identity, enforces the
// allow-list and opens a session. It returns the session and its signed token.
func (s *AuthService) CompleteLogin(ctx context.Context, callback *url.URL, expectedState string) (*domain.Session, string, error) {
	if expectedState == "" {
		return nil, "", fmt.Errorf("%w: missing login state", domain.ErrAuth)
	}

	ident, err := s.provider.Exchange(ctx, callback, expectedState)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	if err := s.access.Check(ident.Email); err != nil {
		return nil, "", err
	}

	now := s.now()
	session := &domain.Session{
		ID:          uuid.NewString(),
		Email:       normalizeEmail(ident.Email),
		Credentials: ident.Credentials,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	token, err := s.generateJWT(session, now)
	if err != nil {
		return nil, "", fmt.Errorf("generate jwt: %w", err)
	}
	return session, token, nil
}

// ValidateToken parses and validates a JWT token string.
// Returns the session ID from the sub claim.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}

// Authenticate resolves a token to a live session whose email is still on
// the allow-list.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*domain.Session, error) {
	sessionID, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, domain.ErrUnauthorized
	}
	if err := s.access.Check(session.Email); err != nil {
		return nil, err
	}
	return session, nil
}

// Logout deletes the session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// PurgeExpired removes sessions past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *AuthService) generateJWT(session *domain.Session, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   session.ID,
		"email": session.Email,
		"iat":   now.Unix(),
		"exp":   session.ExpiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtKey)
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}
