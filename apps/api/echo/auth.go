package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	tokenAudience   = "Classroom"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

// tokenService issues and refreshes HS256 signed tokens.
type tokenService struct {
	issuer            string
	key               []byte
	expiration        time.Duration
	refreshExpiration time.Duration
	now               func() time.Time
}

func newTokenService(conf *core.Config) *tokenService {
	return &tokenService{
		issuer:            conf.AppName,
		key:               []byte(conf.SecretKey),
		expiration:        conf.Server.JWTExpirationDelta,
		refreshExpiration: conf.Server.JWTRefreshExpirationDelta,
		now:               time.Now,
	}
}

func (ts *tokenService) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ts.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// claims returns the Claims of usr. origIat is the issue time of the very first token of the session.
func (ts *tokenService) claims(usr user.User, origIat ...int64) *Claims {
	now := ts.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ts.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ts.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// generate returns a signed JWT token string representing the user Claims.
func (ts *tokenService) generate(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	ss, err := token.SignedString(ts.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// refresh issues a new token for usr, as long as the session started less than refreshExpiration ago.
func (ts *tokenService) refresh(usr user.User, claims Claims) (string, error) {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ts.refreshExpiration)
	if ts.now().After(expTime) {
		return "", errRefreshExpired
	}
	token, err := ts.generate(ts.claims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the authenticated User loaded by activeUserMiddleware.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
