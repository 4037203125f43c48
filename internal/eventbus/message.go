/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus relays session events between instances over Redis pub/sub or NATS.
// Every backend delivers to local subscribers through an in-memory events.Bus and keeps
// working locally when the remote transport is down.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/events"
)

// SubjectPrefix prefixes Redis channels and NATS subjects.
const SubjectPrefix = "speakeasy.events."

const outboxSize = 256

type outgoing struct {
	eventType events.EventType
	payload   events.Payload
}

// message is the wire format shared by all remote backends.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

func subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// NodeID returns id when set, otherwise hostname plus a random suffix.
func NodeID(id string) string {
	if id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}

// relay delivers remote messages to the local bus, dropping our own echoes.
type relay struct {
	local  *events.Bus
	nodeID string
	logger zerolog.Logger
}

func (r *relay) deliver(eventType events.EventType, data []byte) bool {
	msg, err := unmarshalMessage(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to decode remote event")
		return false
	}
	if msg.NodeID == r.nodeID {
		return false
	}
	if msg.EventType != "" && msg.EventType != eventType {
		r.logger.Warn().
			Str("subject_type", string(eventType)).
			Str("message_type", string(msg.EventType)).
			Msg("event type mismatch, dropping")
		return false
	}
	if msg.Payload == nil {
		msg.Payload = events.Payload{}
	}
	msg.Payload["source_node"] = msg.NodeID
	r.local.Publish(eventType, msg.Payload)
	return true
}
