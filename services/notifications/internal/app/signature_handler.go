package app

import (
	"context"
	"errors"
	"log/slog"

	"depohub/pkg/domain"
)

var errBadSignature = errors.New("invalid message signature")

// SignatureHandler gates the chain: a forged envelope aborts processing, a
// valid one passes through unclaimed.
type SignatureHandler struct {
	auth *MessageAuthenticator
	log  *slog.Logger
}

func NewSignatureHandler(auth *MessageAuthenticator, log *slog.Logger) *SignatureHandler {
	return &SignatureHandler{auth: auth, log: log}
}

func (h *SignatureHandler) Handle(_ context.Context, env domain.NotificationEnvelope) (bool, error) {
	if !h.auth.Validate(env) {
		h.log.Warn("rejecting message with invalid signature", "message_id", env.MessageID)
		return false, NewHandleError(env.MessageID, errBadSignature)
	}
	return false, nil
}
