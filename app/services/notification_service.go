package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrProviderUnavailable is returned while a provider's circuit is open
var ErrProviderUnavailable = errors.New("notification provider unavailable")

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(ctx context.Context, mobile, message string) error
	SendEmail(ctx context.Context, email, subject, message string) error
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(ctx context.Context, mobile, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, message string) error
}

// BreakerSettings tunes the circuit breaker placed in front of each provider
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures and probes again after 30s
var DefaultBreakerSettings = BreakerSettings{
	FailureThreshold: 5,
	OpenTimeout:      30 * time.Second,
	Interval:         time.Minute,
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider   SMSProvider
	emailProvider EmailProvider
	smsBreaker    *gobreaker.CircuitBreaker
	emailBreaker  *gobreaker.CircuitBreaker
}

// NewNotificationService creates a new notification service. Either provider may be nil.
func NewNotificationService(smsProvider SMSProvider, emailProvider EmailProvider, settings BreakerSettings) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
		smsBreaker:    newBreaker("sms", settings),
		emailBreaker:  newBreaker("email", settings),
	}
}

func newBreaker(name string, settings BreakerSettings) *gobreaker.CircuitBreaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultBreakerSettings.FailureThreshold
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf(`{"level":"warn","component":"notification","breaker":%q,"from":%q,"to":%q}`, name, from.String(), to.String())
		},
	})
}

func execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s circuit %s", ErrProviderUnavailable, cb.Name(), cb.State())
	}
	return err
}

// SendSMS sends an SMS message to the specified mobile number
func (s *NotificationServiceImpl) SendSMS(ctx context.Context, mobile, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("SMS provider not configured")
	}

	mobile = strings.TrimSpace(mobile)
	if !validMobile(mobile) {
		return fmt.Errorf("invalid mobile number format: %s", mobile)
	}

	return execute(s.smsBreaker, func() error {
		return s.smsProvider.SendSMS(ctx, mobile, message)
	})
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	email = strings.TrimSpace(email)
	if at := strings.LastIndex(email, "@"); at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \r\n") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return execute(s.emailBreaker, func() error {
		return s.emailProvider.SendEmail(ctx, email, subject, message)
	})
}

// validMobile accepts an optional leading + followed by 6 to 15 digits
func validMobile(mobile string) bool {
	digits := strings.TrimPrefix(mobile, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type MockSMSProvider struct{}

func NewMockSMSProvider() SMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(_ context.Context, mobile, message string) error {
	log.Printf("SMS sent to %s: %s", mobile, message)
	return nil
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(_ context.Context, email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	return nil
}

// SMTPEmailProvider sends plain-text mail through an SMTP relay
type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail, fromName string) EmailProvider {
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := p.fromEmail
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.fromEmail)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", " ", "\n", " ").Replace(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(message)

	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	if err := smtp.SendMail(addr, auth, p.fromEmail, []string{email}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}
	return nil
}
