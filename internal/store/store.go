package store

import (
	"context"
	"errors"

	"github.com/eldtechnologies/udpmon/internal/models"
)

// ErrInvalidRetention is returned by DeleteOlderThan for a zero or negative
// retention. The check happens before any transaction is opened.
var ErrInvalidRetention = errors.New("retention must be a positive number of days")

// MessageStore defines the interface for persistent storage of messages.
// Both SQLiteStore and PostgresStore implement this interface.
//
// Writes (Insert, DeleteOlderThan) are serialized by the store; reads may run
// concurrently and see a consistent snapshot at single-call granularity.
// Point lookups return (nil, nil) when no row matches.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Insert stores one datagram and returns the fully populated message,
	// including the assigned id. The timestamp is stamped by the store.
	Insert(ctx context.Context, clientIP string, clientPort uint16, data []byte) (*models.Message, error)

	// Query returns matching messages ordered by id descending.
	// An empty clientIP or a negative clientPort disables that filter;
	// both filters combine with AND semantics.
	Query(ctx context.Context, limit, offset int, clientIP string, clientPort int) ([]models.Message, error)

	// Count returns the number of matching messages, same filter semantics
	// as Query.
	Count(ctx context.Context, clientIP string, clientPort int) (int64, error)

	// GetByID retrieves a message by primary key, (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// DeleteOlderThan removes all messages older than days*24h and returns
	// how many rows were deleted. days may be fractional.
	DeleteOlderThan(ctx context.Context, days float64) (int64, error)
}
