package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mahara-dz/mahara-api/internal/config"
	"github.com/mahara-dz/mahara-api/internal/domain"
	"github.com/mahara-dz/mahara-api/internal/events"
)

// EmailSender accepts outbound mail.
type EmailSender interface {
	Send(ctx context.Context, email domain.Email) error
}

// NotificationService turns account events into emails and audit logs.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     EmailSender
	logger     *zap.Logger
	cfg        config.NotificationConfig
	baseURL    string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sender EmailSender, logger *zap.Logger, cfg config.NotificationConfig, baseURL string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventUserLoggedIn, n.audit)
	n.dispatcher.Subscribe(events.EventUserLoggedOut, n.audit)
	n.dispatcher.Subscribe(events.EventPasswordReset, n.audit)
	n.dispatcher.Subscribe(events.EventUserActivationChanged, n.audit)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	_ = n.audit(ctx, event)
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok || payload.VerificationToken == "" {
		return nil
	}
	link := n.link("/verify", payload.VerificationToken)
	return n.send(ctx, domain.Email{
		To:      event.Email,
		Subject: "Verify your Mahara account",
		Body:    fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening:\n%s\n", payload.FirstName, link),
	})
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	_ = n.audit(ctx, event)
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok || payload.ResetToken == "" {
		return nil
	}
	link := n.link("/reset-password", payload.ResetToken)
	return n.send(ctx, domain.Email{
		To:      event.Email,
		Subject: "Reset your Mahara password",
		Body: fmt.Sprintf("A password reset was requested for this account.\nOpen the link below before %s:\n%s\n",
			payload.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"), link),
	})
}

func (n *NotificationService) audit(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.Int64("user_id", event.UserID),
		zap.String("email", event.Email),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) send(ctx context.Context, email domain.Email) error {
	if n.sender == nil || strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return nil
	}
	if err := n.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("send %q to %s: %w", email.Subject, email.To, err)
	}
	return nil
}

func (n *NotificationService) link(path, token string) string {
	return n.baseURL + path + "?token=" + url.QueryEscape(token)
}
