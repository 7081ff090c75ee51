package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t testing.TB) TokenService {
	service, err := NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		72*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		testSecret,
	)
	require.NoError(t, err)
	return service
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		secretKey   string
		expectError bool
	}{
		{name: "valid symmetric key configuration", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa without keys", useRSAKeys: true, secretKey: testSecret, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Minute, time.Hour, 0, "iss", "aud", tt.useRSAKeys, "", "", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestGenerateTokens(t *testing.T) {
	service := createTestTokenService(t)
	companyID := uint(9)

	tests := []struct {
		name        string
		subject     ActorSubject
		expectError bool
	}{
		{name: "client with company", subject: ActorSubject{UserID: 12, Role: "CLIENT", CompanyID: &companyID}},
		{name: "admin without company", subject: ActorSubject{UserID: 1, Role: "ADMIN"}},
		{name: "missing user", subject: ActorSubject{Role: "ADMIN"}, expectError: true},
		{name: "missing role", subject: ActorSubject{UserID: 1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, refresh, err := service.GenerateTokens(tt.subject)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, access)
			assert.NotEmpty(t, refresh)
			assert.NotEqual(t, access, refresh)
		})
	}
}

func TestTokenClaimsStructure(t *testing.T) {
	service := createTestTokenService(t)
	companyID := uint(42)

	access, refresh, err := service.GenerateTokens(ActorSubject{UserID: 456, Role: "FINANCE_MANAGER", CompanyID: &companyID})
	require.NoError(t, err)

	accessClaims, err := service.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(456), accessClaims.UserID)
	assert.Equal(t, "FINANCE_MANAGER", accessClaims.Role)
	require.NotNil(t, accessClaims.CompanyID)
	assert.Equal(t, uint(42), *accessClaims.CompanyID)
	assert.Equal(t, "access", accessClaims.TokenType)
	assert.NotEmpty(t, accessClaims.TokenID)
	assert.True(t, accessClaims.ExpiresAt.After(accessClaims.IssuedAt))

	refreshClaims, err := service.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(456), refreshClaims.UserID)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
	assert.NotEqual(t, accessClaims.TokenID, refreshClaims.TokenID)
	assert.True(t, refreshClaims.ExpiresAt.After(accessClaims.ExpiresAt))
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	service := createTestTokenService(t)

	access, refresh, err := service.GenerateTokens(ActorSubject{UserID: 3, Role: "CLIENT"})
	require.NoError(t, err)
	guest, _, err := service.GenerateGuestToken("pickup_request", "6f1c7a3e-1b7e-4a55-9a47-1f0f2d4f2c11")
	require.NoError(t, err)

	_, err = service.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = service.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = service.ValidateToken(guest)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = service.ValidateGuestToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiration(t *testing.T) {
	service, err := NewTokenService(-time.Minute, -time.Minute, 0, "test-issuer", "test-audience", false, "", "", testSecret)
	require.NoError(t, err)

	access, refresh, err := service.GenerateTokens(ActorSubject{UserID: 123, Role: "CLIENT"})
	require.NoError(t, err)

	claims, err := service.ValidateToken(access)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)

	_, err = service.ValidateRefreshToken(refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenSecurity(t *testing.T) {
	service1, err := NewTokenService(15*time.Minute, time.Hour, 0, "issuer1", "audience1", false, "", "", "test-secret-key-1-for-jwt-signing-32-chars")
	require.NoError(t, err)
	service2, err := NewTokenService(15*time.Minute, time.Hour, 0, "issuer2", "audience2", false, "", "", "test-secret-key-2-for-jwt-signing-32-chars")
	require.NoError(t, err)

	token1, _, err := service1.GenerateTokens(ActorSubject{UserID: 123, Role: "ADMIN"})
	require.NoError(t, err)
	token2, _, err := service2.GenerateTokens(ActorSubject{UserID: 123, Role: "ADMIN"})
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)

	_, err = service1.ValidateToken(token2)
	assert.Error(t, err)
	_, err = service2.ValidateToken(token1)
	assert.Error(t, err)
}

func TestRejectsForeignIssuerWithSameSecret(t *testing.T) {
	ours := createTestTokenService(t)
	theirs, err := NewTokenService(time.Minute, time.Hour, 0, "someone-else", "test-audience", false, "", "", testSecret)
	require.NoError(t, err)

	token, _, err := theirs.GenerateTokens(ActorSubject{UserID: 1, Role: "ADMIN"})
	require.NoError(t, err)

	_, err = ours.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRejectsUnsignedToken(t *testing.T) {
	service := createTestTokenService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id":    1,
		"role":       "ADMIN",
		"token_type": "access",
		"jti":        "x",
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(time.Hour).Unix(),
		"iss":        "test-issuer",
		"aud":        "test-audience",
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGuestToken(t *testing.T) {
	service := createTestTokenService(t)
	before := time.Now().UTC()

	token, expiresAt, err := service.GenerateGuestToken("purchase_request", "0b8f2f4e-7c39-4f0e-8d0e-3b2f7d1f9a10")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(72*time.Hour), expiresAt, 5*time.Second)

	claims, err := service.ValidateGuestToken(token)
	require.NoError(t, err)
	assert.Equal(t, "purchase_request", claims.Kind)
	assert.Equal(t, "0b8f2f4e-7c39-4f0e-8d0e-3b2f7d1f9a10", claims.RequestUUID)
	assert.Equal(t, expiresAt, claims.ExpiresAt)

	_, _, err = service.GenerateGuestToken("", "x")
	assert.Error(t, err)
}

func TestExpiredGuestToken(t *testing.T) {
	service := createTestTokenService(t)
	impl := service.(*TokenServiceImpl)

	raw, err := impl.generateToken(jwt.MapClaims{
		"kind":         "pickup_request",
		"request_uuid": "0b8f2f4e-7c39-4f0e-8d0e-3b2f7d1f9a10",
		"token_type":   "guest",
		"jti":          "expired",
		"iat":          time.Now().Add(-73 * time.Hour).Unix(),
		"exp":          time.Now().Add(-time.Hour).Unix(),
		"iss":          "test-issuer",
		"aud":          "test-audience",
	})
	require.NoError(t, err)

	claims, err := service.ValidateGuestToken(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service := createTestTokenService(t)

	const numGoroutines = 10
	tokens := make(chan string, numGoroutines)
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(userID uint) {
			access, _, err := service.GenerateTokens(ActorSubject{UserID: userID, Role: "CLIENT"})
			if err != nil {
				errs <- err
				return
			}
			tokens <- access
		}(uint(i + 1))
	}

	generated := make(map[string]bool)
	for i := 0; i < numGoroutines; i++ {
		select {
		case token := <-tokens:
			assert.False(t, generated[token], "Duplicate token generated")
			generated[token] = true
		case err := <-errs:
			t.Errorf("Error generating token: %v", err)
		}
	}
	assert.Len(t, generated, numGoroutines)
}

func TestTokenValidationEdgeCases(t *testing.T) {
	service := createTestTokenService(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "single character", token: "a"},
		{name: "non-JWT string", token: "this is not a jwt token"},
		{name: "JWT with wrong number of parts", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoxMjN9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)

			guest, err := service.ValidateGuestToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, guest)
		})
	}
}

func BenchmarkValidateToken(b *testing.B) {
	service := createTestTokenService(b)

	token, _, err := service.GenerateTokens(ActorSubject{UserID: 123, Role: "CLIENT"})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := service.ValidateToken(token)
		require.NoError(b, err)
	}
}
