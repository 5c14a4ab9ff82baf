package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

// backdate rewrites a message's timestamp so retention tests have old rows.
func backdate(t *testing.T, s *SQLiteStore, id int64, ts time.Time) {
	t.Helper()
	if _, err := s.db.Exec(`UPDATE messages SET timestamp = ? WHERE id = ?`, ts, id); err != nil {
		t.Fatal(err)
	}
}

func TestInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.Insert(ctx, "192.168.1.100", 54321, []byte("Hello, World!"))
	if err != nil {
		t.Fatal(err)
	}

	if msg.ID <= 0 {
		t.Fatalf("expected positive id, got %d", msg.ID)
	}
	if msg.ClientIP != "192.168.1.100" {
		t.Errorf("client_ip = %q", msg.ClientIP)
	}
	if msg.ClientPort != 54321 {
		t.Errorf("client_port = %d", msg.ClientPort)
	}
	if msg.DataSize != int64(len("Hello, World!")) {
		t.Errorf("data_size = %d", msg.DataSize)
	}
	if msg.DataText == nil || *msg.DataText != "Hello, World!" {
		t.Errorf("data_text = %v", msg.DataText)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}
}

func TestInsertEmptyPayload(t *testing.T) {
	s := newTestStore(t)

	msg, err := s.Insert(context.Background(), "10.0.0.1", 1234, nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.DataSize != 0 {
		t.Errorf("data_size = %d, want 0", msg.DataSize)
	}
	// Empty payload is valid UTF-8
	if msg.DataText == nil || *msg.DataText != "" {
		t.Errorf("data_text = %v, want empty string", msg.DataText)
	}

	got, err := s.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.DataSize != 0 || len(got.Data) != 0 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestInsertBinaryPayload(t *testing.T) {
	s := newTestStore(t)
	raw := []byte{0xff, 0xfe}

	msg, err := s.Insert(context.Background(), "10.0.0.1", 1234, raw)
	if err != nil {
		t.Fatal(err)
	}
	if msg.DataText != nil {
		t.Errorf("data_text = %q, want nil for invalid UTF-8", *msg.DataText)
	}

	got, err := s.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("message not found")
	}
	if !bytes.Equal(got.Data, raw) {
		t.Errorf("data = %x, want %x", got.Data, raw)
	}
	if got.DataText != nil {
		t.Errorf("stored data_text = %q, want nil", *got.DataText)
	}
	if got.DataSize != int64(len(raw)) {
		t.Errorf("data_size = %d, want %d", got.DataSize, len(raw))
	}
}

func TestQueryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := s.Insert(ctx, "10.0.0.1", 1000, []byte{byte('0' + i)}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.Query(ctx, 2, 0, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != 3 || msgs[1].ID != 2 {
		t.Errorf("ids = [%d, %d], want [3, 2]", msgs[0].ID, msgs[1].ID)
	}

	msgs, err = s.Query(ctx, 2, 1, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != 2 || msgs[1].ID != 1 {
		t.Errorf("offset page = %+v, want ids [2, 1]", msgs)
	}
}

func TestQueryLimitZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("x")); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.Query(ctx, 0, 0, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Insert(ctx, "10.0.0.1", 1000, []byte("a"))
	s.Insert(ctx, "10.0.0.1", 2000, []byte("b"))
	s.Insert(ctx, "10.0.0.2", 1000, []byte("c"))

	byIP, err := s.Query(ctx, 10, 0, "10.0.0.1", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byIP) != 2 {
		t.Errorf("ip filter: got %d, want 2", len(byIP))
	}

	byPort, err := s.Query(ctx, 10, 0, "", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(byPort) != 2 {
		t.Errorf("port filter: got %d, want 2", len(byPort))
	}

	both, err := s.Query(ctx, 10, 0, "10.0.0.1", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(both) != 1 || both[0].ClientIP != "10.0.0.1" || both[0].ClientPort != 1000 {
		t.Errorf("combined filter: got %+v, want one row for 10.0.0.1:1000", both)
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.Count(ctx, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("empty store count = %d", count)
	}

	s.Insert(ctx, "10.0.0.1", 1000, []byte("a"))
	s.Insert(ctx, "10.0.0.2", 2000, []byte("b"))

	count, err = s.Count(ctx, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	count, err = s.Count(ctx, "10.0.0.2", -1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("filtered count = %d, want 1", count)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	msg, err := s.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Errorf("expected nil for missing id, got %+v", msg)
	}
}

func TestDeleteOlderThanInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("keep")); err != nil {
		t.Fatal(err)
	}

	for _, days := range []float64{0, -1} {
		n, err := s.DeleteOlderThan(ctx, days)
		if !errors.Is(err, ErrInvalidRetention) {
			t.Errorf("days=%v: err = %v, want ErrInvalidRetention", days, err)
		}
		if n != 0 {
			t.Errorf("days=%v: deleted %d rows", days, n)
		}
	}

	count, _ := s.Count(ctx, "", -1)
	if count != 1 {
		t.Errorf("count = %d after invalid deletes, want 1", count)
	}
}

func TestDeleteOlderThanIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("old"))
	if err != nil {
		t.Fatal(err)
	}
	backdate(t, s, old.ID, time.Now().UTC().Add(-48*time.Hour))

	if _, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("fresh")); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteOlderThan(ctx, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("first delete removed %d rows, want 1", n)
	}

	n, err = s.DeleteOlderThan(ctx, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second delete removed %d rows, want 0", n)
	}

	count, _ := s.Count(ctx, "", -1)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDeleteOlderThanFractionalDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	// 18 hours old: inside a 1-day window, outside a half-day window.
	backdate(t, s, msg.ID, time.Now().UTC().Add(-18*time.Hour))

	n, err := s.DeleteOlderThan(ctx, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("1-day delete removed %d rows, want 0", n)
	}

	n, err = s.DeleteOlderThan(ctx, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("half-day delete removed %d rows, want 1", n)
	}
}

func TestConcurrentInsertIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const workers = 10
	const perWorker = 10

	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				msg, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("x"))
				if err != nil {
					t.Errorf("insert failed: %v", err)
					return
				}
				ids <- msg.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	// No duplicates and no gaps: exactly {1..N}
	for i := int64(1); i <= workers*perWorker; i++ {
		if !seen[i] {
			t.Errorf("missing id %d", i)
		}
	}
}

func TestConcurrentInsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Seed rows well past the retention window.
	for i := 0; i < 50; i++ {
		msg, err := s.Insert(ctx, "10.0.0.9", 9999, []byte("stale"))
		if err != nil {
			t.Fatal(err)
		}
		backdate(t, s, msg.ID, time.Now().UTC().Add(-72*time.Hour))
	}

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := s.Insert(ctx, "10.0.0.1", 1000, []byte("fresh")); err != nil {
					t.Errorf("insert failed: %v", err)
				}
			}
		}()
	}
	for d := 0; d < 10; d++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.DeleteOlderThan(ctx, 1.0); err != nil {
				t.Errorf("delete failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// All stale rows gone, all fresh rows kept.
	count, err := s.Count(ctx, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 100 {
		t.Errorf("count = %d, want 100", count)
	}

	// No corruption: every surviving row still satisfies data_size == len(data).
	msgs, err := s.Query(ctx, 1000, 0, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	for _, msg := range msgs {
		if msg.DataSize != int64(len(msg.Data)) {
			t.Errorf("id %d: data_size %d != len(data) %d", msg.ID, msg.DataSize, len(msg.Data))
		}
		if msg.ClientIP == "10.0.0.9" {
			t.Errorf("id %d: stale row survived", msg.ID)
		}
	}
}
