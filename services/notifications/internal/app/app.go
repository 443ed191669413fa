package app

import (
	"context"
	"fmt"
	"log/slog"

	"depohub/pkg/domain"
	"depohub/pkg/storage"
	"depohub/pkg/store"
)

// Config holds runtime configuration for the notification core.
type Config struct {
	DatabaseURL     string
	Store           store.Store
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	Objects         storage.ObjectStore
	SignatureSecret string
	MaxExhibitBytes int64
	Notifier        Notifier
	Confirmer       Confirmer
	Logger          *slog.Logger
}

// App wires the handler chain over persistence, object storage and the push
// transport. One App serves any number of concurrent Process calls.
type App struct {
	chain *Chain
	store store.Store
	log   *slog.Logger
}

func New(cfg Config) (*App, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.SignatureSecret == "" {
		return nil, fmt.Errorf("signature secret required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil && cfg.MinioEndpoint != "" {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	confirmer := cfg.Confirmer
	if confirmer == nil {
		confirmer = NewHTTPConfirmer()
	}

	auth := NewMessageAuthenticator(cfg.SignatureSecret)
	chain := NewChain(
		NewSignatureHandler(auth, log),
		NewSubscriptionHandler(confirmer, log),
		NewExhibitHandler(dataStore, objects, cfg.Notifier, cfg.MaxExhibitBytes, log),
		NewLambdaErrorHandler(dataStore, cfg.Notifier, log),
		NewUnknownHandler(log),
	)

	return &App{chain: chain, store: dataStore, log: log}, nil
}

// Process runs one envelope through the chain. Redelivered envelopes that
// were already handled are dropped up front.
func (a *App) Process(ctx context.Context, env domain.NotificationEnvelope) error {
	seen, err := a.store.HasProcessedMessage(env.MessageID)
	if err != nil {
		return fmt.Errorf("dedupe lookup for message %s: %w", env.MessageID, err)
	}
	if seen {
		a.log.Info("skipping already processed message", "message_id", env.MessageID)
		return nil
	}
	return a.chain.Process(ctx, env)
}
