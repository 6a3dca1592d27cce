package auth

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/safar/marketplace-orders/internal/config"
)

const (
	RoleAdmin = "admin_client_role"
	RoleBuyer = "buyer_client_role"
)

// Principal is the authenticated caller. Token is the raw bearer credential,
// kept only so it can be forwarded to downstream services.
type Principal struct {
	Subject  string
	Username string
	Roles    []string
	Token    string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Require fails with ACCESS_DENIED unless the principal holds one of roles.
func (p Principal) Require(roles ...string) error {
	for _, role := range roles {
		if p.HasRole(role) {
			return nil
		}
	}
	return newError(KindAccessDenied, fmt.Errorf("requires one of %v", roles))
}

type resourceAccess struct {
	Roles []string `json:"roles"`
}

type claims struct {
	jwt.RegisteredClaims
	PreferredUsername string                    `json:"preferred_username"`
	ResourceAccess    map[string]resourceAccess `json:"resource_access"`
}

type Verifier struct {
	resourceID string
	parser     *jwt.Parser
	keyFunc    jwt.Keyfunc
}

func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithLeeway(0)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	v := &Verifier{resourceID: cfg.ResourceID}

	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.keyFunc = func(*jwt.Token) (any, error) { return key, nil }
		opts = append(opts, jwt.WithValidMethods([]string{"RS256"}))
	} else {
		secret := []byte(cfg.HMACSecret)
		v.keyFunc = func(*jwt.Token) (any, error) { return secret, nil }
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
	}

	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// Authenticate turns an Authorization header value into a Principal.
func (v *Verifier) Authenticate(header string) (Principal, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return Principal{}, newError(KindMissingToken, nil)
	}

	var c claims
	if _, err := v.parser.ParseWithClaims(token, &c, v.keyFunc); err != nil {
		return Principal{}, classify(err)
	}

	if c.Subject == "" {
		return Principal{}, newError(KindAuthenticationFailed, errors.New("token has no subject"))
	}

	return Principal{
		Subject:  c.Subject,
		Username: c.PreferredUsername,
		Roles:    c.ResourceAccess[v.resourceID].Roles,
		Token:    token,
	}, nil
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newError(KindSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindTokenMalformed, err)
	default:
		return newError(KindAuthenticationFailed, err)
	}
}
