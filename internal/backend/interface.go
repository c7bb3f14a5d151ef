// Package backend wires a storage backend, the optional event publisher and
// the services into one bundle.
package backend

import (
	"context"
	"time"

	"payplan/internal/amqp"
	"payplan/internal/calendar"
	"payplan/internal/schedule"
	"payplan/internal/services"
	"payplan/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend is a ready-to-use store with the services built on it.
type Backend struct {
	Store     storage.Store
	Publisher *amqp.Client // nil when AMQP is disabled or unreachable
	Views     *schedule.ViewCache

	Ledger      *services.LedgerService
	Instruments *services.InstrumentService
	Fixes       *services.FixService
	Schedule    *services.ScheduleService
	Recurring   *services.RecurringProcessor

	Cleanup CleanupFunc
}

// Close releases the publisher and the store.
func (b *Backend) Close() error {
	if b == nil || b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific, empty for an empty store
	SeedDir string

	// Events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Holidays *calendar.HolidayCalendar

	ViewCacheSize int
	ViewCacheTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
