package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/amqp"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/config"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events/kafka"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/ledger"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets"
	gsheet "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets/google"
	memmirror "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets/memory"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/storage"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/storage/memory"
)

type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger.With("component", "backend")}
}

// OpenStore opens the configured store and runs its migrations.
func (f *Factory) OpenStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory backend, records are lost on exit")
		return memoryStore{memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// OpenLegacyStore opens a store that carries the audit_log table.
func (f *Factory) OpenLegacyStore(cfg Config) (LegacyStore, error) {
	store, err := f.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	ls, ok := store.(LegacyStore)
	if !ok {
		_ = store.Close()
		return nil, fmt.Errorf("backend %s has no legacy audit log", cfg.Type)
	}
	return ls, nil
}

// Publisher returns the configured event publisher. The returned value is
// nil when events are disabled, which the ledger treats as "do not publish".
func (f *Factory) Publisher(cfg *config.Config) (ledger.EventPublisher, CleanupFunc, error) {
	switch EventsBackend(cfg.EventsBackend) {
	case EventsAMQP:
		client, err := f.AMQPClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	case EventsKafka:
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, f.logger)
		f.logger.Info("Initialized Kafka publisher", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return p, p.Close, nil
	case EventsNone, "":
		f.logger.Info("Event publishing disabled")
		return nil, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events backend: %s", cfg.EventsBackend)
	}
}

// AMQPClient connects to the broker named in cfg.
func (f *Factory) AMQPClient(cfg *config.Config) (*amqp.Client, error) {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// Mirror returns the Google Sheets mirror, or an in-memory one when no
// spreadsheet is configured.
func (f *Factory) Mirror(ctx context.Context, cfg *config.Config) (sheets.LedgerMirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		f.logger.Info("Google Sheets disabled, mirroring in memory")
		return memmirror.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return client, nil
}

// memoryStore gives the in-memory store the lifecycle methods of a database.
type memoryStore struct {
	*memory.Store
}

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close() error               { return nil }
