package models

import (
	"time"
	"unicode/utf8"
)

// Message represents one received UDP datagram.
// Messages are immutable once stored; only retention deletes remove them.
type Message struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ClientIP   string    `json:"client_ip"`
	ClientPort uint16    `json:"client_port"`
	Data       []byte    `json:"-"`
	DataText   *string   `json:"data_text,omitempty"` // nil when Data is not valid UTF-8
	DataSize   int64     `json:"data_size"`
}

// DecodeText returns the payload as a string when it is valid UTF-8,
// nil otherwise.
func DecodeText(data []byte) *string {
	if !utf8.Valid(data) {
		return nil
	}
	s := string(data)
	return &s
}
