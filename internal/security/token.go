package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// OpsClaims are the claims carried by ops API tokens.
type OpsClaims struct {
	ActorID int64  `json:"actor_id"`
	Scope   string `json:"scope"`
	jwt.RegisteredClaims
}

type TokenManager interface {
	// Authenticate checks the ops password against the configured bcrypt
	// hash and mints an access token on success.
	Authenticate(password string) (string, error)
	ValidateToken(tokenString string) (*OpsClaims, error)
}

type tokenManager struct {
	secret       []byte
	passwordHash []byte
	actorID      int64
	expiry       time.Duration
}

func NewTokenManager(secret, passwordHash string, actorID int64, expiry time.Duration) TokenManager {
	return &tokenManager{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		actorID:      actorID,
		expiry:       expiry,
	}
}

func (m *tokenManager) Authenticate(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := OpsClaims{
		ActorID: m.actorID,
		Scope:   "moderation",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(m.actorID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "voicegate-ops",
			Audience:  jwt.ClaimStrings{"ops-api"},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*OpsClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OpsClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*OpsClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
