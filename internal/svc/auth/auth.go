package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

var (
	ErrBadToken   = errors.New("bad token")
	ErrNoIdentity = errors.New("token carries no user")
	ErrBadIssuer  = errors.New("token issued by someone else")
)

// Authorizer turns bearer tokens issued by the board application into caller identities
type Authorizer interface {
	SignJWT(secret string, claim jwt.Claims) (string, error)
	VerifyJWT(token []string, out jwt.Claims) (*jwt.Token, error)
	CreateAccessToken(user model.Identity, ttl time.Duration) (string, time.Time, error)
	Identify(token string) (model.Identity, error)
}

type authorizer struct {
	JWTSecret string
	Issuer    string
}

type AuthorizerOptions struct {
	JWTSecret string
	Issuer    string
}

func New(opt AuthorizerOptions) Authorizer {
	if opt.Issuer == "" {
		opt.Issuer = "collabodraw"
	}

	return &authorizer{
		JWTSecret: opt.JWTSecret,
		Issuer:    opt.Issuer,
	}
}

func (a *authorizer) CreateAccessToken(user model.Identity, ttl time.Duration) (string, time.Time, error) {
	expireAt := time.Now().Add(ttl)

	token, err := a.SignJWT(a.JWTSecret, &JWTClaimUser{
		UserID:   int64(user.UserID),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.Issuer,
			ExpiresAt: &jwt.NumericDate{Time: expireAt},
			NotBefore: &jwt.NumericDate{Time: time.Now()},
			IssuedAt:  &jwt.NumericDate{Time: time.Now()},
		},
	})
	if err != nil {
		zap.S().Errorw("access_token, sign",
			"error", err,
			"user_id", user.UserID,
		)

		return "", time.Time{}, err
	}

	return token, expireAt, nil
}

// Identify verifies a token and returns the user it was issued to
func (a *authorizer) Identify(token string) (model.Identity, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return model.Identity{}, ErrBadToken
	}

	claims := &JWTClaimUser{}

	if _, err := a.VerifyJWT(segments, claims); err != nil {
		return model.Identity{}, err
	}

	if !claims.VerifyIssuer(a.Issuer, true) {
		return model.Identity{}, ErrBadIssuer
	}

	if claims.UserID == 0 {
		return model.Identity{}, ErrNoIdentity
	}

	return model.Identity{
		UserID:   model.UserID(claims.UserID),
		Username: claims.Username,
	}, nil
}
