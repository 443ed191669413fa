package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"depohub/pkg/domain"
)

// Confirmer issues the subscription-confirmation callback.
type Confirmer interface {
	Confirm(ctx context.Context, url string) error
}

// HTTPConfirmer confirms by GETting the subscribe URL, the way the pub/sub
// provider expects.
type HTTPConfirmer struct {
	client *http.Client
}

func NewHTTPConfirmer() *HTTPConfirmer {
	return &HTTPConfirmer{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPConfirmer) Confirm(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build confirmation request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("confirm subscription: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("confirm subscription: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SubscriptionHandler claims subscription-confirmation envelopes. They are
// transport housekeeping, never business notifications, so a claimed envelope
// goes no further down the chain.
type SubscriptionHandler struct {
	confirmer Confirmer
	log       *slog.Logger
}

func NewSubscriptionHandler(confirmer Confirmer, log *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{confirmer: confirmer, log: log}
}

func (h *SubscriptionHandler) Handle(ctx context.Context, env domain.NotificationEnvelope) (bool, error) {
	if !env.IsSubscriptionType {
		return false, nil
	}
	if env.SubscribeURL == "" {
		return false, NewHandleError(env.MessageID, fmt.Errorf("subscription message without subscribe URL"))
	}
	if err := h.confirmer.Confirm(ctx, env.SubscribeURL); err != nil {
		// confirmation failures are infrastructure trouble, not bad data:
		// leave them retryable
		return false, fmt.Errorf("message %s: %w", env.MessageID, err)
	}
	h.log.Info("subscription confirmed", "message_id", env.MessageID)
	return true, nil
}
