package integrations

import (
	"context"
	"log/slog"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
)

// NotificationClient calls the notification service's synchronous email
// endpoint. Used only when the async path is disabled or failed.
type NotificationClient struct {
	*client
}

// NewNotificationClient builds the client from the fallback configuration.
func NewNotificationClient(cfg *config.Fallback, serviceName string, logger *slog.Logger) *NotificationClient {
	return &NotificationClient{
		client: newClient(cfg.NotificationURL, cfg, serviceName, logger),
	}
}

// emailRequest matches the notification service's request body.
type emailRequest struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// SendEmail delivers the same content the event payload would have carried.
func (c *NotificationClient) SendEmail(ctx context.Context, p events.NotificationPayload) error {
	return c.post(ctx, "/api/v1/notifications/email", emailRequest{
		To:       p.RecipientEmail,
		Subject:  p.Subject,
		Template: p.TemplateName,
		Data:     p.TemplateData,
	})
}
