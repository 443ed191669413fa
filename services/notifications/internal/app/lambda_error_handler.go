package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"depohub/pkg/domain"
	"depohub/pkg/store"
)

// LambdaErrorHandler claims upstream pipeline failure notifications. It logs
// the error, resolves the owning user best-effort and sends a fire-and-forget
// failure push. Never retried: the notice either reaches the user or it is
// gone.
type LambdaErrorHandler struct {
	store    store.Store
	notifier Notifier
	log      *slog.Logger
}

func NewLambdaErrorHandler(s store.Store, notifier Notifier, log *slog.Logger) *LambdaErrorHandler {
	return &LambdaErrorHandler{store: s, notifier: notifier, log: log}
}

func (h *LambdaErrorHandler) Handle(ctx context.Context, env domain.NotificationEnvelope) (bool, error) {
	notif, ok := ParseExceptionNotification(env.Message)
	if !ok {
		return false, nil
	}

	h.log.Error("upstream exhibit pipeline failure",
		"message_id", env.MessageID,
		"kind", string(notif.NotificationType),
		"error", notif.Context.Error)

	if err := h.store.RecordProcessedMessage(env.MessageID, []byte(env.Message)); err != nil {
		h.log.Warn("failed to record processed message", "message_id", env.MessageID, "err", err)
	}

	owner, resolved := h.resolveUser(notif.Context.Document)
	if !resolved {
		h.log.Error("cannot resolve user for failure notice, dropping push",
			"message_id", env.MessageID)
		return true, nil
	}

	push := domain.PushNotification{
		Action:     domain.ActionError,
		EntityType: domain.EntityExhibit,
		Content: domain.PushContent{
			Message: failureMessage(notif),
			Data:    domain.PushData{ResourceID: notif.Context.Document.DepositionID},
		},
	}
	payload, err := json.Marshal(push)
	if err != nil {
		return true, fmt.Errorf("encode push: %w", err)
	}
	if err := h.notifier.SendToUser(ctx, owner.Email, payload); err != nil {
		h.log.Error("failure push not delivered", "message_id", env.MessageID,
			"user", owner.Email, "err", err)
	}
	return true, nil
}

func (h *LambdaErrorHandler) resolveUser(dc *domain.DocumentContext) (domain.User, bool) {
	if dc == nil || dc.AddedBy == "" {
		return domain.User{}, false
	}
	user, ok, err := h.store.GetUserByID(dc.AddedBy)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

func failureMessage(n domain.ErrorNotification) string {
	name := ""
	if n.Context.Document != nil {
		name = n.Context.Document.DisplayName
	}
	switch n.NotificationType {
	case domain.NotificationExceededSize:
		return fmt.Sprintf("Exhibit %q was rejected: file too large", name)
	case domain.NotificationInvalidS3Structure:
		return fmt.Sprintf("Exhibit %q was rejected: unexpected storage layout", name)
	default:
		return fmt.Sprintf("Exhibit %q failed to process", name)
	}
}
