package audit

import "context"

// Event represents a single auditable webhook outcome.
type Event struct {
	Action       string // e.g. "user.created", "webhook.rejected_signature"
	ResourceType string // "user" or "webhook"
	ResourceID   string // provider user id, empty when unknown
	DeliveryID   string // svix-id of the delivery that caused the event
	Metadata     map[string]any
	Source       string // "webhook", "system"
}

const (
	ActionUserCreated = "user.created"
	ActionUserUpdated = "user.updated"
	ActionUserDeleted = "user.deleted"

	ActionWebhookIgnored           = "webhook.ignored"
	ActionWebhookRejectedSignature = "webhook.rejected_signature"
	ActionWebhookInvalidPayload    = "webhook.invalid_payload"
	ActionWebhookStoreFailed       = "webhook.store_failed"
)

const (
	ResourceUser    = "user"
	ResourceWebhook = "webhook"

	SourceWebhook = "webhook"
)

const (
	MetadataCorrelationID = "correlation_id"
	MetadataEventType     = "event_type"
	MetadataError         = "error"
	MetadataNoop          = "noop"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }
