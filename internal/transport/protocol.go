// Package transport implements the wire protocol between the coordinator
// and remote evaluation workers: length-prefixed JSON frames carried over
// TCP, Unix sockets or vsock.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the maximum allowed frame payload (16 MiB).
const MaxMessageSize = 16 << 20

// Request types sent from coordinator to worker.
const (
	MsgTypeEvaluate = "evaluate"
	MsgTypeQuit     = "quit"
)

// Request asks a worker to score one parameter vector, or to stop serving
// the connection when Type is MsgTypeQuit.
type Request struct {
	Type      string    `json:"type"`
	Objective string    `json:"objective,omitempty"`
	Params    []float64 `json:"params,omitempty"`
}

// Response carries the score for a Request. JSON cannot encode infinities,
// so an unscorable vector is reported with Invalid set.
type Response struct {
	Fitness float64 `json:"fitness"`
	Invalid bool    `json:"invalid,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// WriteMessage writes a length-prefixed JSON message to w.
// The frame format is: 4-byte big-endian length prefix followed by the JSON payload.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a length-prefixed JSON message from r and decodes it into v.
func ReadMessage(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}
