package scanning

import "time"

// MessageRecord is a single chat message as captured during channel traversal.
// Records are produced by the traverser, consumed by the batch publisher, and
// never mutated.
type MessageRecord struct {
	MessageID         string    `json:"message_id"`
	ChannelID         string    `json:"channel_id"`
	CommunityID       string    `json:"community_id"`
	Content           string    `json:"content"`
	AuthorID          string    `json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	Timestamp         time.Time `json:"timestamp"`
	AttachmentURLs    []string  `json:"attachment_urls,omitempty"`
	EmbedText         string    `json:"embed_text,omitempty"`

	// AuthorIsBot is used for qualification filtering and is not part of the
	// wire payload.
	AuthorIsBot bool `json:"-"`
}

// Qualifies reports whether the message is eligible for analysis. Bot-authored
// messages never qualify, nor do messages with no content, no attachments,
// and no embeds.
func (m MessageRecord) Qualifies() bool {
	if m.AuthorIsBot {
		return false
	}
	return m.Content != "" || len(m.AttachmentURLs) > 0 || m.EmbedText != ""
}

// FlaggedMessage is a message the analysis backend classified as potential
// misinformation, along with the evidence for the match.
type FlaggedMessage struct {
	MessageID     string    `json:"message_id"`
	ChannelID     string    `json:"channel_id"`
	Content       string    `json:"content"`
	AuthorID      string    `json:"author_id"`
	Timestamp     time.Time `json:"timestamp"`
	MatchScore    float64   `json:"match_score"`
	MatchedClaim  string    `json:"matched_claim"`
	MatchedSource string    `json:"matched_source"`
}
