/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
)

func (a *API) handleConversationsList(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	headers, err := a.conversations.Conversations(r.Context(), owner)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, "invalid_owner")
			return
		}
		a.logger.Error().Err(err).Str("user_id", owner).Msg("list conversations failed")
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if headers == nil {
		headers = []archive.Header{}
	}

	writeJSON(w, http.StatusOK, headers)
}

func (a *API) handleConversationsGet(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "conversationID")

	detail, err := a.conversations.Conversation(r.Context(), owner, id)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation_not_found")
		case errors.Is(err, archive.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "invalid_conversation_id")
		default:
			a.logger.Error().Err(err).Str("user_id", owner).Str("conversation_id", id).Msg("load conversation failed")
			writeError(w, http.StatusInternalServerError, "load_failed")
		}
		return
	}
	if detail.Feedback == nil {
		detail.Feedback = []string{}
	}

	writeJSON(w, http.StatusOK, detail)
}
