package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSMS struct {
	calls int
	err   error
}

func (r *recordingSMS) SendSMS(_ context.Context, _, _ string) error {
	r.calls++
	return r.err
}

type recordingEmail struct {
	to      []string
	subject string
}

func (r *recordingEmail) SendEmail(_ context.Context, email, subject, _ string) error {
	r.to = append(r.to, email)
	r.subject = subject
	return nil
}

func TestSendSMSValidatesNumber(t *testing.T) {
	sms := &recordingSMS{}
	svc := NewNotificationService(sms, nil, DefaultBreakerSettings)

	tests := []struct {
		mobile string
		valid  bool
	}{
		{"+221771234567", true},
		{"221771234567", true},
		{" +33612345678 ", true},
		{"12345", false},
		{"+22177abc4567", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.mobile, func(t *testing.T) {
			err := svc.SendSMS(context.Background(), tt.mobile, "hello")
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
	assert.Equal(t, 3, sms.calls)
}

func TestSendEmail(t *testing.T) {
	email := &recordingEmail{}
	svc := NewNotificationService(nil, email, DefaultBreakerSettings)

	require.NoError(t, svc.SendEmail(context.Background(), "client@example.com", "Quote QT-20250101-00001", "body"))
	assert.Equal(t, []string{"client@example.com"}, email.to)
	assert.Equal(t, "Quote QT-20250101-00001", email.subject)

	assert.Error(t, svc.SendEmail(context.Background(), "not-an-address", "s", "b"))
	assert.Error(t, svc.SendEmail(context.Background(), "a@", "s", "b"))
	assert.Error(t, svc.SendSMS(context.Background(), "+221771234567", "no sms provider"))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sms := &recordingSMS{err: errors.New("gateway down")}
	svc := NewNotificationService(sms, nil, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		err := svc.SendSMS(context.Background(), "+221771234567", "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrProviderUnavailable)
	}

	err := svc.SendSMS(context.Background(), "+221771234567", "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 2, sms.calls, "open circuit must not reach the provider")
}
