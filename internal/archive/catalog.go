/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

// Catalog indexes archived conversations in a relational database so listings do not
// have to read every document.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog wraps a migrated database.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Record upserts the catalog row for c stored under key.
func (c *Catalog) Record(ctx context.Context, conv Conversation, key string) error {
	rec := models.ConversationRecord{
		ID:              conv.ID,
		OwnerID:         conv.OwnerID,
		Title:           conv.Title,
		ObjectKey:       key,
		StartedAt:       conv.StartedAt.UTC(),
		DurationSeconds: roundSeconds(conv.Duration),
		FramesAnalyzed:  conv.FramesAnalyzed,
		TranscriptWords: len(strings.Fields(conv.Transcript)),
		DominantEmotion: conv.DominantEmotion,
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record conversation %s: %w", conv.ID, err)
	}
	return nil
}

// List returns an owner's conversations, newest first.
func (c *Catalog) List(ctx context.Context, ownerID string) ([]Header, error) {
	var rows []models.ConversationRecord
	err := c.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("started_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	headers := make([]Header, 0, len(rows))
	for _, row := range rows {
		headers = append(headers, Header{
			ID:              row.ID,
			Title:           row.Title,
			Date:            row.StartedAt,
			DurationSeconds: row.DurationSeconds,
			DominantEmotion: row.DominantEmotion,
		})
	}
	return headers, nil
}
