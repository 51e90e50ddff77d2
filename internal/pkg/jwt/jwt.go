package jwt

import (
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Service issues and verifies the service tokens that guard the
// reconciliation trigger API. There are no user accounts here; callers
// are automation (upload pipeline, admin tooling) holding a shared
// HS256 secret.
type Service interface {
	GenerateServiceToken(subject string) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	secretKey      string
	expirationTime string
	tokenAuth      *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, expirationTime string) Service {
	return &JWTService{
		secretKey:      secretKey,
		expirationTime: expirationTime,
		tokenAuth:      jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateServiceToken(subject string) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.expirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		"sub":  subject,
		"type": "service",
		"exp":  expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	if err != nil {
		return "", 0, err
	}
	return tokenString, expiresAt, nil
}
