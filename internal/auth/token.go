package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"scolaris.org/internal/identity"
)

const defaultIssuer = "scolaris"

// Claims are the verified contents of a credential: the identity, the full
// assigned role set and exactly one active role. Scopes maps a role code to
// its faculty/program restriction when one exists.
type Claims struct {
	Roles      []string          `json:"roles"`
	Scopes     map[string]string `json:"scopes,omitempty"`
	ActiveRole string            `json:"active_role"`
	jwt.RegisteredClaims
}

// Credential is a freshly minted signed token with its decoded summary.
type Credential struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Roles      []string  `json:"roles"`
	ActiveRole string    `json:"active_role"`
}

// Issuer mints and verifies HS256 credentials. There is no server-side
// revocation list: a role switch re-mints the credential and the short expiry
// bounds the exposure of the previous one.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if strings.TrimSpace(name) != "" {
			i.issuer = strings.TrimSpace(name)
		}
	}
}

// WithTTL overrides the credential lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer signing with the given secret.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	iss := &Issuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    15 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue mints a credential for an identity at login. The active role defaults
// to the first assigned role.
func (i *Issuer) Issue(id *identity.Identity, assignments []identity.RoleAssignment) (Credential, error) {
	if id == nil || strings.TrimSpace(id.ID) == "" {
		return Credential{}, errors.New("auth: identity is required")
	}
	roles, scopes := rolesFromAssignments(assignments)
	if len(roles) == 0 {
		return Credential{}, fmt.Errorf("%w: identity has no active roles", ErrRoleNotAssigned)
	}
	return i.mint(id.ID, roles, scopes, roles[0])
}

// Reissue mints a credential with the requested active role. It fails with
// ErrRoleNotAssigned when the role is outside the credential's assigned set;
// the prior credential stays valid until its own expiry.
func (i *Issuer) Reissue(claims *Claims, requestedRole string) (Credential, error) {
	if claims == nil {
		return Credential{}, ErrInvalidToken
	}
	requestedRole = identity.NormalizeRole(requestedRole)
	if requestedRole == "" {
		return Credential{}, fmt.Errorf("%w: role is required", ErrRoleNotAssigned)
	}
	if !slices.Contains(claims.Roles, requestedRole) {
		return Credential{}, fmt.Errorf("%w: %s", ErrRoleNotAssigned, requestedRole)
	}
	return i.mint(claims.Subject, claims.Roles, claims.Scopes, requestedRole)
}

// ParseAndValidate verifies the token signature and required claims.
func (i *Issuer) ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithIssuer(i.issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

func (i *Issuer) mint(subject string, roles []string, scopes map[string]string, activeRole string) (Credential, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Roles:      dedupeRoles(roles),
		Scopes:     scopes,
		ActiveRole: identity.NormalizeRole(activeRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign token: %w", err)
	}
	return Credential{
		Token:      signed,
		ExpiresAt:  exp,
		Roles:      claims.Roles,
		ActiveRole: claims.ActiveRole,
	}, nil
}

func validateClaims(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	active := identity.NormalizeRole(claims.ActiveRole)
	if active == "" {
		return errors.New("active role missing")
	}
	if !slices.Contains(dedupeRoles(claims.Roles), active) {
		return errors.New("active role outside assigned set")
	}
	return nil
}

func rolesFromAssignments(assignments []identity.RoleAssignment) ([]string, map[string]string) {
	var roles []string
	scopes := make(map[string]string)
	for _, a := range assignments {
		if !a.Active {
			continue
		}
		role := identity.NormalizeRole(a.Role)
		if role == "" {
			continue
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
		if a.Scope != "" {
			scopes[role] = a.Scope
		}
	}
	if len(scopes) == 0 {
		scopes = nil
	}
	return roles, scopes
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = identity.NormalizeRole(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
