// Package auth turns signed bearer tokens into principals carrying a
// PermissionSet.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

// Config holds the shared-secret token settings.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// Claims is the token payload. Permissions lists granted capability names.
type Claims struct {
	jwt.RegisteredClaims
	Permissions []string `json:"permissions,omitempty"`
}

// Principal is an authenticated caller.
type Principal struct {
	Subject     string
	Permissions models.PermissionSet
	ExpiresAt   time.Time
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for cfg. The secret is required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New(errors.CodeInvalidRequest, "jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses and validates token. Unknown capability names in the
// permissions claim are ignored.
func (v *Verifier) Verify(token string) (*Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, errors.New(errors.CodeUnauthenticated, "missing token")
	}

	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.CodeUnauthenticated, "token expired")
		}
		return nil, errors.Wrap(err, errors.CodeUnauthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated, "invalid claims type")
	}
	if claims.Subject == "" {
		return nil, errors.New(errors.CodeUnauthenticated, "token has no subject")
	}

	p := &Principal{
		Subject:     claims.Subject,
		Permissions: permissionSet(claims.Permissions),
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// IssueToken signs a token for subject granting permissions, valid for ttl.
func IssueToken(cfg Config, subject string, permissions []string, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New(errors.CodeInvalidRequest, "jwt secret is required")
	}
	if subject == "" {
		return "", errors.New(errors.CodeInvalidRequest, "subject is required")
	}
	if ttl <= 0 {
		return "", errors.Newf(errors.CodeInvalidRequest, "ttl must be positive, got %s", ttl)
	}
	for _, p := range permissions {
		if !models.IsKnownPermission(p) {
			return "", errors.Newf(errors.CodeInvalidRequest, "unknown permission %q", p)
		}
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Permissions: permissions,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func permissionSet(names []string) models.PermissionSet {
	granted := make([]string, 0, len(names))
	for _, name := range names {
		if models.IsKnownPermission(name) {
			granted = append(granted, name)
		}
	}
	return models.NewPermissionSet(granted...)
}

// String implements fmt.Stringer.
func (p *Principal) String() string {
	return fmt.Sprintf("%s %v", p.Subject, p.Permissions.Granted())
}
