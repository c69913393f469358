package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var validRoles = map[string]struct{}{
	"creator": {},
	"founder": {},
	"admin":   {},
}

// Claims is the verified caller identity carried by bearer tokens.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type referralClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HMACVerifier validates HS256 bearer tokens issued by the platform auth service.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACVerifier(secret, issuer, audience string) (*HMACVerifier, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	return &HMACVerifier{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

// Sign issues a token; used by local tooling and tests.
func (v *HMACVerifier) Sign(claims Claims, issuedAt time.Time) (string, error) {
	registered := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	}
	if v.issuer != "" {
		registered.Issuer = v.issuer
	}
	if v.audience != "" {
		registered.Audience = jwt.ClaimStrings{v.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, referralClaims{Role: claims.Role, RegisteredClaims: registered})
	return token.SignedString(v.secret)
}

func (v *HMACVerifier) Verify(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &referralClaims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*referralClaims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, errors.New("token subject is required")
	}
	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if _, ok := validRoles[role]; !ok {
		return Claims{}, fmt.Errorf("unsupported role %q", claims.Role)
	}
	out := Claims{Subject: claims.Subject, Role: role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}
