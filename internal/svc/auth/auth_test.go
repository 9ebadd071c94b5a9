package auth

import (
	"testing"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/testutil"
	"github.com/golang-jwt/jwt/v4"
)

func TestIdentifyRoundTrip(t *testing.T) {
	a := New(AuthorizerOptions{JWTSecret: "secret"})

	tok, expireAt, err := a.CreateAccessToken(model.Identity{UserID: 42, Username: "alice"}, time.Hour)
	testutil.IsNil(t, err, "sign")
	testutil.Assert(t, true, expireAt.After(time.Now()), "expiry in the future")

	id, err := a.Identify(tok)
	testutil.IsNil(t, err, "identify")
	testutil.Assert(t, model.Identity{UserID: 42, Username: "alice"}, id, "identity")
}

func TestIdentifyRejects(t *testing.T) {
	a := New(AuthorizerOptions{JWTSecret: "secret"})
	other := New(AuthorizerOptions{JWTSecret: "other"})

	tok, _, err := other.CreateAccessToken(model.Identity{UserID: 42}, time.Hour)
	testutil.IsNil(t, err, "sign")

	_, err = a.Identify(tok)
	testutil.IsNotNil(t, err, "wrong secret")

	_, err = a.Identify("garbage")
	testutil.AssertErr(t, ErrBadToken, err, "malformed")

	expired, _, _ := a.CreateAccessToken(model.Identity{UserID: 42}, -time.Minute)
	_, err = a.Identify(expired)
	testutil.IsNotNil(t, err, "expired")

	anon, err := a.SignJWT("secret", &JWTClaimUser{RegisteredClaims: jwt.RegisteredClaims{Issuer: "collabodraw"}})
	testutil.IsNil(t, err, "sign anonymous")

	_, err = a.Identify(anon)
	testutil.AssertErr(t, ErrNoIdentity, err, "no user")
}

func TestIdentifyChecksIssuer(t *testing.T) {
	a := New(AuthorizerOptions{JWTSecret: "secret"})
	foreign := New(AuthorizerOptions{JWTSecret: "secret", Issuer: "elsewhere"})

	tok, _, err := foreign.CreateAccessToken(model.Identity{UserID: 42, Username: "alice"}, time.Hour)
	testutil.IsNil(t, err, "sign")

	_, err = a.Identify(tok)
	testutil.AssertErr(t, ErrBadIssuer, err, "foreign issuer")

	id, err := foreign.Identify(tok)
	testutil.IsNil(t, err, "matching issuer")
	testutil.Assert(t, "alice", id.Username, "identity")

	blank, err := a.SignJWT("secret", &JWTClaimUser{UserID: 42})
	testutil.IsNil(t, err, "sign without issuer")

	_, err = a.Identify(blank)
	testutil.AssertErr(t, ErrBadIssuer, err, "issuer required")
}

func TestVerifyRejectsNone(t *testing.T) {
	a := New(AuthorizerOptions{JWTSecret: "secret"})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaimUser{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	testutil.IsNil(t, err, "sign none")

	_, err = a.Identify(tok)
	testutil.IsNotNil(t, err, "unsigned token rejected")
}
