package app

import (
	"context"
	"log/slog"

	"depohub/pkg/domain"
)

// UnknownHandler terminates the chain. An unrecognized message is not an
// error: log it and drop it.
type UnknownHandler struct {
	log *slog.Logger
}

func NewUnknownHandler(log *slog.Logger) *UnknownHandler {
	return &UnknownHandler{log: log}
}

func (h *UnknownHandler) Handle(_ context.Context, env domain.NotificationEnvelope) (bool, error) {
	h.log.Info("dropping unrecognized message",
		"message_id", env.MessageID,
		"is_subscription", env.IsSubscriptionType,
		"body_bytes", len(env.Message))
	return true, nil
}
