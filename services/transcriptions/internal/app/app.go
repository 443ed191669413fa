package app

import (
	"fmt"
	"log/slog"

	"depohub/pkg/domain"
	"depohub/pkg/queue"
	"depohub/pkg/speech"
	"depohub/pkg/storage"
	"depohub/pkg/store"
)

// Config holds runtime configuration for the transcription core.
type Config struct {
	DatabaseURL    string
	Store          store.Store
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	Objects        storage.ObjectStore
	SpeechURL      string
	Engine         speech.Engine
	Logger         *slog.Logger
}

// App ties the session registry, the draft queue and its worker together.
type App struct {
	Registry *Registry
	Queue    *queue.TaskQueue
	Worker   *DraftWorker
	Store    store.Store
}

func New(cfg Config) (*App, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
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
	if objects == nil {
		if cfg.MinioEndpoint == "" {
			return nil, fmt.Errorf("minio endpoint required")
		}
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	engine := cfg.Engine
	if engine == nil {
		if cfg.SpeechURL == "" {
			return nil, fmt.Errorf("speech engine URL required")
		}
		engine = speech.NewWSEngine(cfg.SpeechURL)
	}

	q := queue.NewTaskQueue()
	return &App{
		Registry: NewRegistry(engine, dataStore, log),
		Queue:    q,
		Worker:   NewDraftWorker(q, dataStore, objects, log),
		Store:    dataStore,
	}, nil
}

// RequestDraft enqueues a draft-transcript job. Fire and forget: success is
// observed only through the eventually persisted document.
func (a *App) RequestDraft(req *domain.DraftTranscriptRequest) error {
	return a.Queue.Enqueue(req)
}
