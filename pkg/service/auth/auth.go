package auth

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// DefaultAcceptableSkew tolerates clock drift between the token issuer and this service
const DefaultAcceptableSkew = 10 * time.Second

// Claims is the caller identity carried by a verified token
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier turns a raw bearer token into caller claims. Any failure wraps
// model.ErrAuthentication.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

type options struct {
	issuer   string
	audience string
	skew     time.Duration
}

type Option func(*options)

func WithIssuer(issuer string) Option {
	return func(o *options) {
		o.issuer = issuer
	}
}

func WithAudience(audience string) Option {
	return func(o *options) {
		o.audience = audience
	}
}

func WithAcceptableSkew(d time.Duration) Option {
	return func(o *options) {
		o.skew = d
	}
}

func newOptions(opts []Option) options {
	o := options{skew: DefaultAcceptableSkew}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) parseOptions(key jwt.ParseOption) []jwt.ParseOption {
	parseOpts := []jwt.ParseOption{
		key,
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(o.skew),
	}
	if o.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(o.audience))
	}
	return parseOpts
}

func parse(raw string, parseOpts []jwt.ParseOption) (*Claims, error) {
	if raw == "" {
		return nil, goerr.Wrap(model.ErrAuthentication, "token is missing")
	}

	token, err := jwt.Parse([]byte(raw), parseOpts...)
	if err != nil {
		return nil, goerr.Wrap(model.ErrAuthentication, "failed to verify token", goerr.V("reason", err.Error()))
	}
	if token.Subject() == "" {
		return nil, goerr.Wrap(model.ErrAuthentication, "sub claim not found in token")
	}

	return &Claims{
		Subject: token.Subject(),
		Email:   stringClaim(token, "email"),
		Name:    stringClaim(token, "name"),
	}, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// HMAC verifies and issues HS256 tokens signed with a shared secret
type HMAC struct {
	key  []byte
	opts options
}

func NewHMAC(secret string, opts ...Option) (*HMAC, error) {
	if secret == "" {
		return nil, goerr.New("token secret is empty")
	}
	return &HMAC{key: []byte(secret), opts: newOptions(opts)}, nil
}

func (h *HMAC) Verify(ctx context.Context, raw string) (*Claims, error) {
	return parse(raw, h.opts.parseOptions(jwt.WithKey(jwa.HS256, h.key)))
}

// Issue signs a token for the claims that expires after ttl
func (h *HMAC) Issue(claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(claims.Subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if claims.Email != "" {
		builder = builder.Claim("email", claims.Email)
	}
	if claims.Name != "" {
		builder = builder.Claim("name", claims.Name)
	}
	if h.opts.issuer != "" {
		builder = builder.Issuer(h.opts.issuer)
	}
	if h.opts.audience != "" {
		builder = builder.Audience([]string{h.opts.audience})
	}

	token, err := builder.Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, h.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

// JWKS verifies tokens against a remote key set that is refreshed in the background
type JWKS struct {
	set  jwk.Set
	opts options
}

func NewJWKS(ctx context.Context, jwksURL string, opts ...Option) (*JWKS, error) {
	if jwksURL == "" {
		return nil, goerr.New("JWKS URL is empty")
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, goerr.Wrap(err, "failed to register JWKS URL", goerr.V("url", jwksURL))
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, goerr.Wrap(err, "failed to fetch JWKS", goerr.V("url", jwksURL))
	}

	return &JWKS{set: jwk.NewCachedSet(cache, jwksURL), opts: newOptions(opts)}, nil
}

func (j *JWKS) Verify(ctx context.Context, raw string) (*Claims, error) {
	return parse(raw, j.opts.parseOptions(jwt.WithKeySet(j.set)))
}

// NoAuthn accepts every request as a fixed user. For local development only.
type NoAuthn struct {
	claims Claims
}

func NewNoAuthn(sub, email, name string) *NoAuthn {
	return &NoAuthn{claims: Claims{Subject: sub, Email: email, Name: name}}
}

func (n *NoAuthn) Verify(ctx context.Context, raw string) (*Claims, error) {
	c := n.claims
	return &c, nil
}
