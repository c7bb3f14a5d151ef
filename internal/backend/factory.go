package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"payplan/internal/amqp"
	"payplan/internal/billing"
	"payplan/internal/schedule"
	"payplan/internal/services"
	"payplan/internal/storage"
	"payplan/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case MemoryBackend:
		store, err = f.createMemoryStore(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	// AMQP is optional: a broker outage must not keep the API down.
	var client *amqp.Client
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			client = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	b := Assemble(store, client, config)
	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", client != nil)
	return b, nil
}

// Assemble builds the services on store. client may be nil.
func Assemble(store storage.Store, client *amqp.Client, config Config) *Backend {
	calc := billing.Calculator{Holidays: config.Holidays}

	// A nil *amqp.Client must stay a nil interface.
	var publisher services.Publisher
	if client != nil {
		publisher = client
	}

	size := config.ViewCacheSize
	if size < 1 {
		size = 64
	}
	views := schedule.NewViewCache(size, config.ViewCacheTTL)

	ledger := services.NewLedgerService(store, calc, publisher)
	return &Backend{
		Store:       store,
		Publisher:   client,
		Views:       views,
		Ledger:      ledger,
		Instruments: services.NewInstrumentService(store, calc, publisher),
		Fixes:       services.NewFixService(store, calc, publisher),
		Schedule:    services.NewScheduleService(store, calc, views),
		Recurring:   services.NewRecurringProcessor(store, ledger),
		Cleanup: func() error {
			var errs []error
			if client != nil {
				errs = append(errs, client.Close())
			}
			errs = append(errs, store.Close())
			return errors.Join(errs...)
		},
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (storage.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (storage.Store, error) {
	if config.SeedDir == "" {
		f.logger.Info("Initialized empty memory backend")
		return memory.New(), nil
	}
	store, err := memory.NewFromFiles(config.SeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)
	return store, nil
}
