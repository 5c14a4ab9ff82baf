// Package listener implements the UDP ingestion adapter: every received
// datagram is echoed back with an "ECHO:" prefix and handed to the message
// store. A storage failure drops that one datagram and keeps the listener
// alive.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/udpmon/internal/metrics"
	"github.com/eldtechnologies/udpmon/internal/models"
	"github.com/eldtechnologies/udpmon/internal/store"
)

// maxDatagramSize bounds a single read. UDP payloads over IPv4 cannot
// exceed 65507 bytes.
const maxDatagramSize = 64 * 1024

var echoPrefix = []byte("ECHO:")

// Listener receives UDP datagrams, echoes them and stores them.
type Listener struct {
	addr   string
	store  store.MessageStore
	logger zerolog.Logger
}

// New creates a listener bound to addr (host:port) on Run.
func New(addr string, st store.MessageStore, logger zerolog.Logger) *Listener {
	return &Listener{
		addr:   addr,
		store:  st,
		logger: logger.With().Str("component", "listener").Logger(),
	}
}

// Run binds the UDP socket and processes datagrams until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", l.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	defer conn.Close()

	// Unblock the read loop on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP listener started")

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info().Msg("UDP listener stopped")
				return nil
			}
			l.logger.Warn().Err(err).Msg("read failed")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		metrics.DatagramsReceived.Inc()
		metrics.DatagramBytes.Add(float64(n))

		l.handle(ctx, conn, addr, data)
	}
}

// handle stores one datagram and sends the echo reply. The echo is attempted
// even when the insert fails; the sender has no storage guarantee either way.
func (l *Listener) handle(ctx context.Context, conn *net.UDPConn, addr *net.UDPAddr, data []byte) {
	start := time.Now()
	msg, err := l.store.Insert(ctx, addr.IP.String(), uint16(addr.Port), data)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("insert").Inc()
		l.logger.Error().Err(err).
			Str("client_ip", addr.IP.String()).
			Int("client_port", addr.Port).
			Msg("failed to store datagram")
	} else {
		metrics.InsertLatency.Observe(time.Since(start).Seconds())
	}

	echo := make([]byte, 0, len(echoPrefix)+len(data))
	echo = append(echo, echoPrefix...)
	echo = append(echo, data...)
	if _, err := conn.WriteToUDP(echo, addr); err != nil {
		metrics.EchoFailures.Inc()
		l.logger.Warn().Err(err).Msg("echo reply failed")
	}

	if msg != nil {
		l.logger.Debug().
			Int64("id", msg.ID).
			Str("client_ip", msg.ClientIP).
			Uint16("client_port", msg.ClientPort).
			Str("data", preview(data)).
			Msg("datagram stored")
	}
}

// preview renders up to 50 characters of the payload for logging.
func preview(data []byte) string {
	text := models.DecodeText(data)
	if text == nil {
		return fmt.Sprintf("<binary: %d bytes>", len(data))
	}
	s := *text
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
