package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	cfg := loadFromEnv()
	cfg.Database.Password = "secret"
	cfg.JWT.SecretKey = strings.Repeat("k", 32)
	return cfg
}

func TestDefaultsCarryBusinessPolicy(t *testing.T) {
	cfg := loadFromEnv()

	assert.Equal(t, "XOF", cfg.Business.Currency)
	assert.Equal(t, 72*time.Hour, cfg.JWT.GuestTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Business.InvitationTTL)
	assert.InDelta(t, 0.15, cfg.Business.PurchaseServiceFeeRate, 1e-9)
	assert.InDelta(t, 5000, cfg.Business.PurchaseServiceFeeFloor, 1e-9)
	assert.True(t, cfg.SMS.IsMock())
	assert.True(t, cfg.Email.IsMock())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BUSINESS_CURRENCY", "eur")
	t.Setenv("BUSINESS_PURCHASE_FEE_RATE", "0.2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("ADMIN_EMAIL", "Ops@Example.com")

	cfg := loadFromEnv()

	assert.Equal(t, "EUR", cfg.Business.Currency)
	assert.InDelta(t, 0.2, cfg.Business.PurchaseServiceFeeRate, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 8080, cfg.Server.Port, "unparsable values fall back to the default")
	assert.Equal(t, "ops@example.com", cfg.Admin.Email)
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr []string
	}{
		{"valid", func(*ProductionConfig) {}, nil},
		{"short jwt secret", func(c *ProductionConfig) { c.JWT.SecretKey = "short" }, []string{"JWT_SECRET_KEY"}},
		{"rsa without keys", func(c *ProductionConfig) { c.JWT.UseRSAKeys = true }, []string{"JWT_PRIVATE_KEY"}},
		{"fee rate above one", func(c *ProductionConfig) { c.Business.PurchaseServiceFeeRate = 1.5 }, []string{"BUSINESS_PURCHASE_FEE_RATE"}},
		{"bad currency", func(c *ProductionConfig) { c.Business.Currency = "FRANC" }, []string{"BUSINESS_CURRENCY"}},
		{"file log without path", func(c *ProductionConfig) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, []string{"LOG_FILE_PATH"}},
		{"real smtp without credentials", func(c *ProductionConfig) { c.Email.Host = "smtp.example.com" }, []string{"EMAIL_USERNAME", "EMAIL_PASSWORD"}},
		{"collects every problem", func(c *ProductionConfig) {
			c.Database.Password = ""
			c.Server.Port = 0
			c.Captcha.Padding = 90
		}, []string{"DB_PASSWORD", "SERVER_PORT", "CAPTCHA_PADDING"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport KARGO_TEST_A=\"quoted\"\nKARGO_TEST_B=file\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("KARGO_TEST_B", "process")
	t.Setenv("KARGO_TEST_A", "")

	require.NoError(t, loadEnvFile(path))

	assert.Equal(t, "quoted", os.Getenv("KARGO_TEST_A"))
	assert.Equal(t, "process", os.Getenv("KARGO_TEST_B"))
}

func TestLoadEnvFileMissingIsNotAnError(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoggingAllows(t *testing.T) {
	tests := []struct {
		level string
		want  map[string]bool
	}{
		{"debug", map[string]bool{"debug": true, "info": true, "warn": true, "error": true}},
		{"warn", map[string]bool{"debug": false, "info": false, "warn": true, "error": true}},
		{"error", map[string]bool{"debug": false, "info": false, "warn": false, "error": true}},
		{"", map[string]bool{"debug": false, "info": true, "warn": true, "error": true}},
	}
	for _, tt := range tests {
		t.Run("threshold "+tt.level, func(t *testing.T) {
			cfg := LoggingConfig{Level: tt.level}
			for level, want := range tt.want {
				assert.Equal(t, want, cfg.Allows(level), level)
			}
		})
	}
}

func TestPortalURL(t *testing.T) {
	assert.Empty(t, DeploymentConfig{Environment: "production"}.PortalURL())
	assert.Equal(t, "https://kargo.example.com", DeploymentConfig{Domain: "kargo.example.com", Environment: "production"}.PortalURL())
	assert.Equal(t, "http://localhost:3000", DeploymentConfig{Domain: "localhost:3000", Environment: "development"}.PortalURL())
}
