/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
)

// Conversations is the archive surface the API reads from.
type Conversations interface {
	Conversations(ctx context.Context, ownerID string) ([]archive.Header, error)
	Conversation(ctx context.Context, ownerID, id string) (archive.Detail, error)
}

// API exposes HTTP handlers.
type API struct {
	conversations Conversations
	verifier      *auth.Verifier
	logger        zerolog.Logger
}

// New creates the API router wrapper.
func New(conversations Conversations, verifier *auth.Verifier, logger zerolog.Logger) *API {
	return &API{
		conversations: conversations,
		verifier:      verifier,
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers the REST endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.verifier))

			pr.Route("/conversations", func(r chi.Router) {
				r.Get("/", a.handleConversationsList)
				r.Get("/{conversationID}", a.handleConversationsGet)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
