package integrations

import (
	"context"
	"log/slog"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
)

// AuditClient calls the audit service's synchronous log endpoint. Used only
// when the async path is disabled or failed: audit records must never be
// silently lost.
type AuditClient struct {
	*client
}

// NewAuditClient builds the client from the fallback configuration.
func NewAuditClient(cfg *config.Fallback, serviceName string, logger *slog.Logger) *AuditClient {
	return &AuditClient{
		client: newClient(cfg.AuditURL, cfg, serviceName, logger),
	}
}

// auditLogRequest matches the audit service's request body.
type auditLogRequest struct {
	UserID       int64          `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   int64          `json:"resource_id"`
	Description  string         `json:"description,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	OldValue     string         `json:"old_value,omitempty"`
	NewValue     string         `json:"new_value,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
}

// LogAction records the same audit facts the event payload would have carried.
func (c *AuditClient) LogAction(ctx context.Context, p events.AuditPayload) error {
	return c.post(ctx, "/api/v1/audit-logs", auditLogRequest{
		UserID:       p.UserID,
		Action:       p.Action,
		ResourceType: p.ResourceType,
		ResourceID:   p.ResourceID,
		Description:  p.Description,
		IPAddress:    p.IPAddress,
		UserAgent:    p.UserAgent,
		OldValue:     p.OldValue,
		NewValue:     p.NewValue,
		Changes:      p.Changes,
	})
}
