package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/udpmon/internal/models"
)

// PostgresStore handles PostgreSQL database operations. Write serialization
// comes from Postgres itself; no store-level lock is needed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates the messages table if it doesn't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		client_ip TEXT NOT NULL,
		client_port INTEGER NOT NULL,
		data BYTEA NOT NULL,
		data_text TEXT,
		data_size BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_ip, client_port);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Insert stores one datagram and returns the populated message.
func (s *PostgresStore) Insert(ctx context.Context, clientIP string, clientPort uint16, data []byte) (*models.Message, error) {
	now := time.Now().UTC()
	dataText := models.DecodeText(data)
	dataSize := int64(len(data))
	if data == nil {
		data = []byte{}
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (timestamp, client_ip, client_port, data, data_text, data_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, now, clientIP, int(clientPort), data, dataText, dataSize).Scan(&id)
	if err != nil {
		return nil, err
	}

	return &models.Message{
		ID:         id,
		Timestamp:  now,
		ClientIP:   clientIP,
		ClientPort: clientPort,
		Data:       data,
		DataText:   dataText,
		DataSize:   dataSize,
	}, nil
}

// Query retrieves messages ordered by id descending, with optional
// client_ip/client_port equality filters and limit/offset pagination.
func (s *PostgresStore) Query(ctx context.Context, limit, offset int, clientIP string, clientPort int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, timestamp, client_ip, client_port, data, data_text, data_size FROM messages`
	where, params := pgFilters(clientIP, clientPort)
	query += where

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(params)+1, len(params)+2)
	params = append(params, limit, offset)

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

// Count returns the number of messages matching the filters.
func (s *PostgresStore) Count(ctx context.Context, clientIP string, clientPort int) (int64, error) {
	query := `SELECT COUNT(*) FROM messages`
	where, params := pgFilters(clientIP, clientPort)
	query += where

	var count int64
	err := s.pool.QueryRow(ctx, query, params...).Scan(&count)
	return count, err
}

// GetByID retrieves a message by ID, (nil, nil) if it doesn't exist.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, timestamp, client_ip, client_port, data, data_text, data_size
		FROM messages WHERE id = $1
	`, id)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// DeleteOlderThan removes messages older than days*24h in one statement
// and returns the number of rows deleted.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, days float64) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRetention, days)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(days * float64(24*time.Hour)))

	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// pgFilters builds the optional WHERE clause shared by Query and Count.
func pgFilters(clientIP string, clientPort int) (string, []interface{}) {
	var conditions []string
	var params []interface{}

	if clientIP != "" {
		params = append(params, clientIP)
		conditions = append(conditions, fmt.Sprintf("client_ip = $%d", len(params)))
	}
	if clientPort >= 0 {
		params = append(params, clientPort)
		conditions = append(conditions, fmt.Sprintf("client_port = $%d", len(params)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), params
}
