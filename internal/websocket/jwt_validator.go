package websocket

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// ErrInvalidToken is returned when the handshake token fails
// validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrChannelNotFound is returned when the token subject maps to no
// event channel.
var ErrChannelNotFound = errors.New("channel not found")

const (
	jwksCacheTTL     = 5 * time.Minute
	allowedClockSkew = time.Minute
	validateTimeout  = 5 * time.Second
)

// ChannelLookup maps an authenticated token subject onto the one event
// channel it may follow: the applicant's own channel, or the shared
// ops channel for back-office staff.
type ChannelLookup interface {
	GetChannelBySubject(subject string) (channel string, err error)
}

// CustomClaims satisfies the validator's claims hook; the handshake
// only needs the registered subject.
type CustomClaims struct{}

// Validate implements validator.CustomClaims.
func (CustomClaims) Validate(context.Context) error { return nil }

// Auth0JWTValidator authorizes WebSocket handshakes. Browsers cannot
// set an Authorization header on the upgrade request, so the token
// rides a query parameter and is validated here instead of in the
// echo middleware chain.
type Auth0JWTValidator struct {
	validator     *validator.Validator
	channelLookup ChannelLookup
}

func NewAuth0JWTValidator(domain, audience string, channelLookup ChannelLookup) (*Auth0JWTValidator, error) {
	issuer, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	keys := jwks.NewCachingProvider(issuer, jwksCacheTTL)
	v, err := validator.New(
		keys.KeyFunc,
		validator.RS256,
		issuer.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims { return &CustomClaims{} }),
		validator.WithAllowedClockSkew(allowedClockSkew),
	)
	if err != nil {
		return nil, err
	}

	return &Auth0JWTValidator{validator: v, channelLookup: channelLookup}, nil
}

// ValidateToken verifies the handshake token and resolves the channel
// its subject may subscribe to.
func (a *Auth0JWTValidator) ValidateToken(token string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	claims, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return "", ErrInvalidToken
	}
	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	channel, err := a.channelLookup.GetChannelBySubject(validated.RegisteredClaims.Subject)
	if err != nil {
		return "", ErrChannelNotFound
	}
	return channel, nil
}
