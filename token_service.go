package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface. It signs HS256
// pairs: a short-lived access token and a longer-lived refresh token, told
// apart by the token_type claim.
type TokenServiceImpl struct {
	signingKey        []byte
	accessExpiration  int
	refreshExpiration int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. Expirations are in
// hours.
func NewTokenService(signingKey []byte, accessExpiration, refreshExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if accessExpiration <= 0 {
		accessExpiration = 1
	}
	if refreshExpiration <= 0 {
		refreshExpiration = 24
	}
	return &TokenServiceImpl{
		signingKey:        signingKey,
		accessExpiration:  accessExpiration,
		refreshExpiration: refreshExpiration,
		issuer:            issuer,
		audience:          audience,
		logger:            logger,
	}
}

// IssuePair generates an access/refresh token pair for the identity
func (ts *TokenServiceImpl) IssuePair(identity Identity) (TokenPair, error) {
	if identity == nil {
		return TokenPair{}, errors.New("identity must not be nil", errors.CategoryInternal)
	}

	access, err := ts.sign(ts.newClaims(identity, TokenTypeAccess))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.sign(ts.newClaims(identity, TokenTypeRefresh))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// Refresh validates a refresh token and issues a fresh pair for the same
// identity. Access tokens are rejected here.
func (ts *TokenServiceImpl) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := ts.Validate(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if claims.TokenType() != TokenTypeRefresh {
		ts.logger.Warn("TokenService refresh rejected non refresh token", "type", claims.TokenType())
		return TokenPair{}, ErrTokenMalformed
	}

	return ts.IssuePair(claimsIdentity{claims: claims})
}

func (ts *TokenServiceImpl) newClaims(identity Identity, tokenType string) *JWTClaims {
	now := time.Now()

	ttl := time.Duration(ts.accessExpiration) * time.Hour
	if tokenType == TokenTypeRefresh {
		ttl = time.Duration(ts.refreshExpiration) * time.Hour
	}

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  identity.Role(),
		Type:      tokenType,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) sign(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// claimsIdentity lets a validated refresh token stand in as the identity for
// the next pair.
type claimsIdentity struct {
	claims AuthClaims
}

func (c claimsIdentity) ID() string    { return c.claims.UserID() }
func (c claimsIdentity) Email() string { return c.claims.Email() }
func (c claimsIdentity) Role() string  { return c.claims.Role() }
