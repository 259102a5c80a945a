package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"type"`
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenManager issues and verifies the HS256 access/refresh tokens used by
// both the REST endpoints and the WebSocket handshake.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	jwtParser  *jwt.Parser
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	jwtParser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		jwtParser:  jwtParser,
	}
}

func (m *TokenManager) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("unexpected signing method"))
	}
	return m.secret, nil
}

// Issue signs a token of the given type for the username.
func (m *TokenManager) Issue(username string, tokenType TokenType) (string, error) {
	ttl := m.accessTTL
	if tokenType == TokenTypeRefresh {
		ttl = m.refreshTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.secret)
}

// IssuePair signs a fresh access/refresh token pair.
func (m *TokenManager) IssuePair(username string) (TokenPair, error) {
	accessToken, err := m.Issue(username, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := m.Issue(username, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

// Verify parses the token, checks its type claim and returns the subject.
func (m *TokenManager) Verify(tokenString string, tokenType TokenType) (string, error) {
	claims := Claims{}

	_, err := m.jwtParser.ParseWithClaims(tokenString, &claims, m.keyFunc)
	if err != nil {
		return "", ierr.New(ierr.ErrorCodeUnauthenticated, err)
	}

	if claims.TokenType != tokenType {
		return "", ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid token type"))
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid subject claim"))
	}

	return subject, nil
}
