package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/valinor-ai/usersync/internal/audit"
	"github.com/valinor-ai/usersync/internal/platform/middleware"
	"github.com/valinor-ai/usersync/internal/users"
)

const defaultMaxBodyBytes = 1 << 20

// UserStore is the persistence the handler mirrors events into.
type UserStore interface {
	Create(ctx context.Context, u users.User) (*users.User, error)
	Update(ctx context.Context, u users.User) (*users.User, error)
	Delete(ctx context.Context, id string) error
}

// HandlerConfig holds the handler's collaborators.
type HandlerConfig struct {
	Verifier     Verifier
	Store        UserStore
	Audit        audit.Logger
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// Handler receives signed user lifecycle webhooks.
type Handler struct {
	verifier     Verifier
	store        UserStore
	audit        audit.Logger
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		verifier:     cfg.Verifier,
		store:        cfg.Store,
		audit:        cfg.Audit,
		logger:       cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// HandleWebhook verifies the delivery and applies it to the users table.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetRequestID(ctx)
	log := h.logger.With("request_id", correlationID, "delivery_id", r.Header.Get(HeaderID))

	if missing := MissingHeaders(r.Header); len(missing) > 0 {
		log.Warn("webhook rejected", "reason", ErrMissingHeaders, "missing", missing)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing svix headers"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	evt, err := h.verifier.Verify(r.Header, body)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingHeaders):
			log.Warn("webhook rejected", "reason", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing svix headers"})
		case errors.Is(err, ErrVerification):
			log.Warn("webhook rejected", "reason", err)
			h.audit.Log(ctx, audit.Event{
				Action:       audit.ActionWebhookRejectedSignature,
				ResourceType: audit.ResourceWebhook,
				DeliveryID:   r.Header.Get(HeaderID),
				Metadata:     map[string]any{audit.MetadataCorrelationID: correlationID},
				Source:       audit.SourceWebhook,
			})
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "verification failed"})
		case errors.Is(err, ErrInvalidPayload):
			h.rejectPayload(ctx, w, log, r.Header.Get(HeaderID), "", err)
		default:
			log.Error("webhook verification errored", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	log = log.With("event_type", string(evt.Type))

	switch evt.Type {
	case EventUserCreated:
		h.handleUserCreated(ctx, w, log, evt)
	case EventUserUpdated:
		h.handleUserUpdated(ctx, w, log, evt)
	case EventUserDeleted:
		h.handleUserDeleted(ctx, w, log, evt)
	default:
		log.Info("webhook ignored")
		h.record(ctx, audit.ActionWebhookIgnored, audit.ResourceWebhook, "", evt, nil)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook received"})
	}
}

func (h *Handler) handleUserCreated(ctx context.Context, w http.ResponseWriter, log *slog.Logger, evt *Event) {
	data, err := evt.UserData()
	if err != nil {
		h.rejectPayload(ctx, w, log, evt.DeliveryID, evt.Type, err)
		return
	}

	if _, err := h.store.Create(ctx, data.User()); err != nil {
		h.storeFailed(ctx, w, log, evt, data.ID, err)
		return
	}

	log.Info("user created", "user_id", data.ID)
	h.record(ctx, audit.ActionUserCreated, audit.ResourceUser, data.ID, evt, nil)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created"})
}

func (h *Handler) handleUserUpdated(ctx context.Context, w http.ResponseWriter, log *slog.Logger, evt *Event) {
	data, err := evt.UserData()
	if err != nil {
		h.rejectPayload(ctx, w, log, evt.DeliveryID, evt.Type, err)
		return
	}

	var meta map[string]any
	if _, err := h.store.Update(ctx, data.User()); err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			h.storeFailed(ctx, w, log, evt, data.ID, err)
			return
		}
		log.Warn("update for unknown user, nothing to change", "user_id", data.ID)
		meta = map[string]any{audit.MetadataNoop: true}
	} else {
		log.Info("user updated", "user_id", data.ID)
	}

	h.record(ctx, audit.ActionUserUpdated, audit.ResourceUser, data.ID, evt, meta)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User updated"})
}

func (h *Handler) handleUserDeleted(ctx context.Context, w http.ResponseWriter, log *slog.Logger, evt *Event) {
	data, err := evt.DeletedData()
	if err != nil {
		h.rejectPayload(ctx, w, log, evt.DeliveryID, evt.Type, err)
		return
	}

	var meta map[string]any
	if err := h.store.Delete(ctx, data.ID); err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			h.storeFailed(ctx, w, log, evt, data.ID, err)
			return
		}
		log.Warn("delete for unknown user, nothing to remove", "user_id", data.ID)
		meta = map[string]any{audit.MetadataNoop: true}
	} else {
		log.Info("user deleted", "user_id", data.ID)
	}

	h.record(ctx, audit.ActionUserDeleted, audit.ResourceUser, data.ID, evt, meta)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (h *Handler) rejectPayload(ctx context.Context, w http.ResponseWriter, log *slog.Logger, deliveryID string, eventType EventType, err error) {
	log.Warn("webhook payload rejected", "reason", err)
	h.audit.Log(ctx, audit.Event{
		Action:       audit.ActionWebhookInvalidPayload,
		ResourceType: audit.ResourceWebhook,
		DeliveryID:   deliveryID,
		Metadata: map[string]any{
			audit.MetadataCorrelationID: middleware.GetRequestID(ctx),
			audit.MetadataEventType:     string(eventType),
			audit.MetadataError:         err.Error(),
		},
		Source: audit.SourceWebhook,
	})
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event payload"})
}

// storeFailed reports a persistence error with its raw message; the
// provider's own retry policy is the only recovery.
func (h *Handler) storeFailed(ctx context.Context, w http.ResponseWriter, log *slog.Logger, evt *Event, userID string, err error) {
	log.Error("user store operation failed", "user_id", userID, "error", err)
	h.record(ctx, audit.ActionWebhookStoreFailed, audit.ResourceUser, userID, evt, map[string]any{
		audit.MetadataError: err.Error(),
	})
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (h *Handler) record(ctx context.Context, action, resourceType, resourceID string, evt *Event, extra map[string]any) {
	meta := map[string]any{
		audit.MetadataCorrelationID: middleware.GetRequestID(ctx),
		audit.MetadataEventType:     string(evt.Type),
	}
	for k, v := range extra {
		meta[k] = v
	}
	h.audit.Log(ctx, audit.Event{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		DeliveryID:   evt.DeliveryID,
		Metadata:     meta,
		Source:       audit.SourceWebhook,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
