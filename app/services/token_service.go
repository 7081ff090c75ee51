// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/kargo/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeGuest   = "guest"
)

// TokenService handles JWT token generation and validation
type TokenService interface {
	GenerateTokens(subject ActorSubject) (accessToken, refreshToken string, err error)
	ValidateToken(token string) (*TokenClaims, error)
	ValidateRefreshToken(token string) (*TokenClaims, error)
	// Guest tokens let an anonymous submitter follow one request
	GenerateGuestToken(kind, requestUUID string) (string, time.Time, error)
	ValidateGuestToken(token string) (*GuestTokenClaims, error)
}

// ActorSubject is who an access token is issued to
type ActorSubject struct {
	UserID    uint
	Role      string
	CompanyID *uint
}

// TokenClaims represents the claims in an actor JWT
type TokenClaims struct {
	UserID    uint      `json:"user_id"`
	Role      string    `json:"role"`
	CompanyID *uint     `json:"company_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // "access" or "refresh"
	TokenID   string    `json:"jti"`
}

// GuestTokenClaims identifies the request a guest token grants read access to
type GuestTokenClaims struct {
	Kind        string    `json:"kind"`
	RequestUUID string    `json:"request_uuid"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenID     string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	guestTokenTTL   time.Duration
	signingMethod   jwt.SigningMethod
	privateKey      *rsa.PrivateKey
	publicKey       *rsa.PublicKey
	secretKey       []byte
	useRSAKeys      bool
	issuer          string
	audience        string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL, refreshTokenTTL, guestTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var secretKeyBytes []byte
	var signingMethod jwt.SigningMethod

	if useRSAKeys {
		var err error
		privateKey, publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		secretKeyBytes = []byte(secretKey)
		signingMethod = jwt.SigningMethodHS256
	}

	if guestTokenTTL <= 0 {
		guestTokenTTL = utils.GuestTrackingTokenTTL
	}

	return &TokenServiceImpl{
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		guestTokenTTL:   guestTokenTTL,
		signingMethod:   signingMethod,
		privateKey:      privateKey,
		publicKey:       publicKey,
		secretKey:       secretKeyBytes,
		useRSAKeys:      useRSAKeys,
		issuer:          issuer,
		audience:        audience,
	}, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// GenerateTokens generates access and refresh tokens for an actor
func (s *TokenServiceImpl) GenerateTokens(subject ActorSubject) (accessToken, refreshToken string, err error) {
	if subject.UserID == 0 || subject.Role == "" {
		return "", "", fmt.Errorf("token subject requires a user id and a role")
	}
	now := utils.UTCNow()

	accessToken, err = s.generateActorToken(subject, tokenTypeAccess, now, s.accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.generateActorToken(subject, tokenTypeRefresh, now, s.refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *TokenServiceImpl) generateActorToken(subject ActorSubject, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	tokenID, err := generateTokenID()
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"user_id":    subject.UserID,
		"role":       subject.Role,
		"token_type": tokenType,
		"jti":        tokenID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"iss":        s.issuer,
		"aud":        s.audience,
	}
	if subject.CompanyID != nil {
		claims["company_id"] = *subject.CompanyID
	}
	return s.generateToken(claims)
}

// ValidateToken validates an access token and returns its claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	return s.validateActorToken(token, tokenTypeAccess)
}

// ValidateRefreshToken validates a refresh token and returns its claims
func (s *TokenServiceImpl) ValidateRefreshToken(token string) (*TokenClaims, error) {
	return s.validateActorToken(token, tokenTypeRefresh)
}

func (s *TokenServiceImpl) validateActorToken(token, wantType string) (*TokenClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	if tokenType, _ := claims["token_type"].(string); tokenType != wantType {
		return nil, ErrTokenInvalid
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, ErrTokenInvalid
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, ErrTokenInvalid
	}
	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	out := &TokenClaims{
		UserID:    uint(userID),
		Role:      role,
		TokenType: wantType,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt: time.Unix(int64(expiresAt), 0).UTC(),
	}
	if companyID, ok := claims["company_id"].(float64); ok && companyID > 0 {
		out.CompanyID = utils.ToPtr(uint(companyID))
	}
	return out, nil
}

// GenerateGuestToken issues a read-only token for one guest request
func (s *TokenServiceImpl) GenerateGuestToken(kind, requestUUID string) (string, time.Time, error) {
	if kind == "" || requestUUID == "" {
		return "", time.Time{}, fmt.Errorf("guest token requires a kind and a request uuid")
	}
	tokenID, err := generateTokenID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := utils.UTCNow()
	expiresAt := now.Add(s.guestTokenTTL)
	token, err := s.generateToken(jwt.MapClaims{
		"kind":         kind,
		"request_uuid": requestUUID,
		"token_type":   tokenTypeGuest,
		"jti":          tokenID,
		"iat":          now.Unix(),
		"exp":          expiresAt.Unix(),
		"iss":          s.issuer,
		"aud":          s.audience,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Unix(expiresAt.Unix(), 0).UTC(), nil
}

// ValidateGuestToken validates a guest token and returns the request it points to
func (s *TokenServiceImpl) ValidateGuestToken(token string) (*GuestTokenClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if tokenType, _ := claims["token_type"].(string); tokenType != tokenTypeGuest {
		return nil, ErrTokenInvalid
	}
	kind, ok := claims["kind"].(string)
	if !ok || kind == "" {
		return nil, ErrTokenInvalid
	}
	requestUUID, ok := claims["request_uuid"].(string)
	if !ok || requestUUID == "" {
		return nil, ErrTokenInvalid
	}
	tokenID, _ := claims["jti"].(string)
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return &GuestTokenClaims{
		Kind:        kind,
		RequestUUID: requestUUID,
		ExpiresAt:   time.Unix(int64(expiresAt), 0).UTC(),
		TokenID:     tokenID,
	}, nil
}

// parse verifies the signature, expiry, issuer and audience of token
func (s *TokenServiceImpl) parse(token string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(utils.UTCNow),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if s.useRSAKeys {
			return s.publicKey, nil
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// generateToken creates a signed JWT token
func (s *TokenServiceImpl) generateToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(s.signingMethod, claims)

	var signedString string
	var err error

	if s.useRSAKeys {
		signedString, err = token.SignedString(s.privateKey)
	} else {
		signedString, err = token.SignedString(s.secretKey)
	}

	if err != nil {
		return "", err
	}

	return signedString, nil
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
