/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound text message types.
const (
	TypeStreamStart = "stream-start"
	TypeStreamStop  = "stream-stop"
	TypePong        = "pong"
)

// Binary frame kinds. The first byte of every binary message selects the kind.
const (
	KindVideoChunk byte = 0x01
	KindAudioChunk byte = 0x02
)

// TypePing is sent by the server to keep the connection alive.
const TypePing = "ping"

var errEmptyFrame = errors.New("empty binary frame")

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type      string    `json:"type"`
	ConnID    string    `json:"conn_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Command is an inbound text message.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StartData is the payload of stream-start.
type StartData struct {
	UserID string `json:"userId"`
}

func decodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("decode command: missing type")
	}
	return cmd, nil
}

func (c Command) startData() StartData {
	var d StartData
	if len(c.Data) > 0 {
		// A malformed payload starts an anonymous session.
		_ = json.Unmarshal(c.Data, &d)
	}
	return d
}

func splitFrame(data []byte) (byte, []byte, error) {
	if len(data) < 2 {
		return 0, nil, errEmptyFrame
	}
	return data[0], data[1:], nil
}

// EncodeFrame prefixes payload with its kind byte.
func EncodeFrame(kind byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, kind)
	return append(out, payload...)
}
