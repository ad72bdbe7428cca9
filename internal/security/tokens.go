package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	actordomain "apflow/internal/actor/domain"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token. Role and department
// ride in the token so request handling does not need a profile read.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
}

// RefreshClaims holds JWT claims for the refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on every parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the profile.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(profile *actordomain.Profile) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   profile.ID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:         string(profile.Role),
		DepartmentID: profile.DepartmentID,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT bound to the actor.
func (p *TokenProvider) IssueRefresh(actorID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   actorID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns actorID, role, and departmentID, or error.
func (p *TokenProvider) ValidateAccess(tokenString string) (actorID, role, departmentID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", "", ErrInvalidToken
	}
	if !p.claimsMatch(claims.Issuer, claims.Audience) {
		return "", "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, claims.DepartmentID, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
// Returns the actorID, or error.
func (p *TokenProvider) ValidateRefresh(tokenString string) (actorID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if !p.claimsMatch(claims.Issuer, claims.Audience) {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

func (p *TokenProvider) claimsMatch(issuer string, audience jwt.ClaimStrings) bool {
	if issuer != p.issuer {
		return false
	}
	for _, a := range audience {
		if a == p.audience {
			return true
		}
	}
	return false
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
