package listener

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/udpmon/internal/models"
	"github.com/eldtechnologies/udpmon/internal/store"
)

// freeUDPAddr reserves a loopback UDP port and releases it for the listener.
func freeUDPAddr(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	addr := conn.LocalAddr().String()
	conn.Close()
	return addr
}

// sendAndRead sends payload and waits for a reply, retrying while the
// listener is still binding.
func sendAndRead(t *testing.T, addr string, payload []byte) []byte {
	t.Helper()
	client, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	buf := make([]byte, 64*1024)
	for attempt := 0; attempt < 20; attempt++ {
		if _, err := client.Write(payload); err != nil {
			t.Fatal(err)
		}
		client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := client.Read(buf)
		if err == nil {
			return buf[:n]
		}
	}
	t.Fatal("no echo reply from listener")
	return nil
}

func startListener(t *testing.T, st store.MessageStore) string {
	t.Helper()
	addr := freeUDPAddr(t)
	l := New(addr, st, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("listener did not stop")
		}
	})
	return addr
}

func newSQLiteStore(t *testing.T) store.MessageStore {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestEchoAndStore(t *testing.T) {
	st := newSQLiteStore(t)
	addr := startListener(t, st)

	reply := sendAndRead(t, addr, []byte("hello"))
	if string(reply) != "ECHO:hello" {
		t.Fatalf("reply = %q, want %q", reply, "ECHO:hello")
	}

	msgs, err := st.Query(context.Background(), 10, 0, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stored %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.DataText == nil || *msg.DataText != "hello" {
		t.Errorf("data_text = %v, want hello", msg.DataText)
	}
	if msg.ClientIP != "127.0.0.1" {
		t.Errorf("client_ip = %q", msg.ClientIP)
	}
	if msg.ClientPort == 0 {
		t.Error("client_port not recorded")
	}
}

func TestBinaryPayload(t *testing.T) {
	st := newSQLiteStore(t)
	addr := startListener(t, st)

	raw := []byte{0xff, 0xfe, 0x00}
	reply := sendAndRead(t, addr, raw)
	want := append([]byte("ECHO:"), raw...)
	if !bytes.Equal(reply, want) {
		t.Fatalf("reply = %x, want %x", reply, want)
	}

	msgs, err := st.Query(context.Background(), 10, 0, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stored %d messages, want 1", len(msgs))
	}
	if msgs[0].DataText != nil {
		t.Errorf("data_text = %q, want nil for binary payload", *msgs[0].DataText)
	}
	if !bytes.Equal(msgs[0].Data, raw) {
		t.Errorf("data = %x, want %x", msgs[0].Data, raw)
	}
}

// failingStore rejects every insert.
type failingStore struct{}

func (failingStore) Close() {}

func (failingStore) Ping(ctx context.Context) error { return nil }

func (failingStore) Insert(ctx context.Context, clientIP string, clientPort uint16, data []byte) (*models.Message, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Query(ctx context.Context, limit, offset int, clientIP string, clientPort int) ([]models.Message, error) {
	return nil, nil
}

func (failingStore) Count(ctx context.Context, clientIP string, clientPort int) (int64, error) {
	return 0, nil
}

func (failingStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	return nil, nil
}

func (failingStore) DeleteOlderThan(ctx context.Context, days float64) (int64, error) {
	return 0, nil
}

func TestContinuesOnStorageError(t *testing.T) {
	addr := startListener(t, failingStore{})

	// The echo is attempted regardless of storage outcome, and the listener
	// keeps serving after a failed insert.
	for i := 0; i < 2; i++ {
		reply := sendAndRead(t, addr, []byte("ping"))
		if string(reply) != "ECHO:ping" {
			t.Fatalf("reply %d = %q, want %q", i, reply, "ECHO:ping")
		}
	}
}
