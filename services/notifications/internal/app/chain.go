package app

import (
	"context"
	"fmt"

	"depohub/pkg/domain"
)

// Handler is one link in the notification chain. Handle reports whether it
// claimed the envelope; a claimed envelope stops the chain. A handler may
// return (false, nil) to pass the envelope along, or an error to abort
// processing entirely.
type Handler interface {
	Handle(ctx context.Context, env domain.NotificationEnvelope) (claimed bool, err error)
}

// Chain evaluates handlers left to right with short-circuit on claim. The
// last handler is expected to claim unconditionally; an envelope running off
// the end is a wiring bug.
type Chain struct {
	handlers []Handler
}

func NewChain(handlers ...Handler) *Chain {
	return &Chain{handlers: handlers}
}

func (c *Chain) Process(ctx context.Context, env domain.NotificationEnvelope) error {
	for _, h := range c.handlers {
		claimed, err := h.Handle(ctx, env)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return fmt.Errorf("no handler claimed message %s", env.MessageID)
}
