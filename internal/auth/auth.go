package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// User roles and profile types carried in access-token claims.
const (
	UserTypeBuyer  = "Buyer"
	UserTypeSeller = "Seller"

	ProfileTypeIndividual = "Individual"
	ProfileTypeCompany    = "Company"
)

// Verification errors surfaced to the middleware.
var (
	ErrNoToken          = errors.New("missing bearer token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenBlacklisted = errors.New("token has been blacklisted")
	ErrInvalidToken     = errors.New("invalid token")
)

// Claims is the access-token payload issued by the accounts service.
type Claims struct {
	UserID          string `json:"user_id"`
	TokenType       string `json:"token_type"`
	UserType        string `json:"user_type"`
	UserProfileType string `json:"user_profile_type"`
	IsVerified      bool   `json:"is_verified"`
	Country         string `json:"country"`
	Nickname        string `json:"nickname"`
	Avatar          string `json:"avatar"`
	Email           string `json:"email"`
	jwt.RegisteredClaims
}

// User is the authenticated caller, built from verified claims. It stands in
// for a user record; this service keeps no user table of its own.
type User struct {
	ID          uuid.UUID
	UserType    string
	ProfileType string
	IsVerified  bool
	Country     string
	Nickname    string
	Avatar      string
	Email       string
}

// IsBuyer reports whether the user holds the Buyer role.
func (u *User) IsBuyer() bool { return u.UserType == UserTypeBuyer }

// IsSeller reports whether the user holds the Seller role.
func (u *User) IsSeller() bool { return u.UserType == UserTypeSeller }

// IsIndividual reports whether the user's profile is an individual one.
func (u *User) IsIndividual() bool { return u.ProfileType == ProfileTypeIndividual }

// IsCompany reports whether the user's profile is a company one.
func (u *User) IsCompany() bool { return u.ProfileType == ProfileTypeCompany }

// HasCountry reports whether the user's profile carries a country, which
// auction and bid creation require.
func (u *User) HasCountry() bool { return u.Country != "" }

// Verifier validates access tokens against the accounts service's public key
// and its Redis blacklist.
type Verifier struct {
	publicKey *rsa.PublicKey
	blacklist *redis.Client
}

// NewVerifier parses the PEM public key and wires the optional blacklist
// client (nil skips blacklist checks).
func NewVerifier(publicKeyPEM string, blacklist *redis.Client) (*Verifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("RSA public key is not configured")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse RSA public key: %w", err)
	}
	return &Verifier{publicKey: key, blacklist: blacklist}, nil
}

// VerifyHeader authenticates an Authorization header value of the form
// "Bearer <token>" and returns the caller.
func (v *Verifier) VerifyHeader(ctx context.Context, header string) (*User, error) {
	if header == "" {
		return nil, ErrNoToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, fmt.Errorf("%w: authorization type must be Bearer", ErrInvalidToken)
	}
	return v.VerifyToken(ctx, parts[1])
}

// VerifyToken authenticates a raw token string.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (*User, error) {
	if v.blacklist != nil {
		n, err := v.blacklist.Exists(ctx, token).Result()
		if err != nil {
			return nil, fmt.Errorf("blacklist lookup: %w", err)
		}
		if n > 0 {
			return nil, ErrTokenBlacklisted
		}
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: expected an access token", ErrInvalidToken)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: token does not carry a valid user_id", ErrInvalidToken)
	}

	return &User{
		ID:          userID,
		UserType:    claims.UserType,
		ProfileType: claims.UserProfileType,
		IsVerified:  claims.IsVerified,
		Country:     claims.Country,
		Nickname:    claims.Nickname,
		Avatar:      claims.Avatar,
		Email:       claims.Email,
	}, nil
}
