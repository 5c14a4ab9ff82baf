package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/udpmon/internal/models"
)

// SQLiteStore handles SQLite database operations.
//
// SQLite allows a single writer at a time; the store serializes Insert and
// DeleteOlderThan behind a mutex so concurrent callers queue instead of
// hitting SQLITE_BUSY. Reads bypass the mutex and see the last committed
// WAL snapshot.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serializes all mutating statements.
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/udpmon.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/udpmon.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates the messages table if it doesn't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		client_ip TEXT NOT NULL,
		client_port INTEGER NOT NULL,
		data BLOB NOT NULL,
		data_text TEXT,
		data_size INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_ip, client_port);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores one datagram and returns the populated message.
func (s *SQLiteStore) Insert(ctx context.Context, clientIP string, clientPort uint16, data []byte) (*models.Message, error) {
	now := time.Now().UTC()
	dataText := models.DecodeText(data)
	dataSize := int64(len(data))
	if data == nil {
		data = []byte{}
	}

	s.writeMu.Lock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (timestamp, client_ip, client_port, data, data_text, data_size)
		VALUES (?, ?, ?, ?, ?, ?)
	`, now, clientIP, int(clientPort), data, dataText, dataSize)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	id, err := res.LastInsertId()
	s.writeMu.Unlock()
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
func (s *SQLiteStore) Query(ctx context.Context, limit, offset int, clientIP string, clientPort int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, timestamp, client_ip, client_port, data, data_text, data_size FROM messages`
	var conditions []string
	var params []interface{}

	if clientIP != "" {
		conditions = append(conditions, "client_ip = ?")
		params = append(params, clientIP)
	}
	if clientPort >= 0 {
		conditions = append(conditions, "client_port = ?")
		params = append(params, clientPort)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	params = append(params, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, params...)
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
func (s *SQLiteStore) Count(ctx context.Context, clientIP string, clientPort int) (int64, error) {
	query := `SELECT COUNT(*) FROM messages`
	var conditions []string
	var params []interface{}

	if clientIP != "" {
		conditions = append(conditions, "client_ip = ?")
		params = append(params, clientIP)
	}
	if clientPort >= 0 {
		conditions = append(conditions, "client_port = ?")
		params = append(params, clientPort)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int64
	err := s.db.QueryRowContext(ctx, query, params...).Scan(&count)
	return count, err
}

// GetByID retrieves a message by ID, (nil, nil) if it doesn't exist.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, client_ip, client_port, data, data_text, data_size
		FROM messages WHERE id = ?
	`, id)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// DeleteOlderThan removes messages older than days*24h in one transaction
// and returns the number of rows deleted.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, days float64) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRetention, days)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(days * float64(24*time.Hour)))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var port int
	err := row.Scan(
		&msg.ID,
		&msg.Timestamp,
		&msg.ClientIP,
		&port,
		&msg.Data,
		&msg.DataText,
		&msg.DataSize,
	)
	if err != nil {
		return nil, err
	}
	msg.ClientPort = uint16(port)
	return msg, nil
}
