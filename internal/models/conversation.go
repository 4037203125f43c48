/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the session records and the conversation catalog row.
package models

import "time"

// ConversationRecord is the catalog row written for every persisted conversation.
// The document itself lives in object storage under ObjectKey.
type ConversationRecord struct {
	ID              string    `gorm:"type:varchar(128);primaryKey"`
	OwnerID         string    `gorm:"type:varchar(128);index:idx_conversation_owner_date"`
	Title           string    `gorm:"type:varchar(255)"`
	ObjectKey       string    `gorm:"type:varchar(512);uniqueIndex"`
	StartedAt       time.Time `gorm:"index:idx_conversation_owner_date"`
	DurationSeconds float64
	FramesAnalyzed  int
	TranscriptWords int
	DominantEmotion string `gorm:"type:varchar(32)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides for GORM.
func (ConversationRecord) TableName() string {
	return "conversation_records"
}
