// Package backend builds the storage, event and mirror components selected
// by configuration.
package backend

import (
	"context"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/ledger"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/worker"
)

// Store is everything the binaries need from a ledger backend.
type Store interface {
	ledger.Store
	ledger.ProjectReader
	worker.Store
	Ping(ctx context.Context) error
	Close() error
}

// LegacyStore is a Store that also holds the historical audit log.
type LegacyStore interface {
	Store
	legacy.Source
	legacy.Sink
}

// CleanupFunc releases a component's resources.
type CleanupFunc func() error

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// EventsBackend names the transport used for expense.recorded events.
type EventsBackend string

const (
	EventsNone  EventsBackend = "none"
	EventsAMQP  EventsBackend = "amqp"
	EventsKafka EventsBackend = "kafka"
)
