// Package discord adapts the Discord API to the scanning domain's
// ChannelSource port using the discordgo session.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// session is the narrow slice of *discordgo.Session the adapter needs,
// abstracted for testability.
type session interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

var _ scanning.ChannelSource = (*ChannelSource)(nil)

// ChannelSource implements scanning.ChannelSource over a Discord guild.
// History fetches are paced by a shared rate limiter to bound platform API
// load.
type ChannelSource struct {
	session session
	limiter *common.RateLimiter

	logger *logger.Logger
	tracer trace.Tracer
}

// NewChannelSource creates a channel source over an established discordgo
// session.
func NewChannelSource(
	s *discordgo.Session,
	limiter *common.RateLimiter,
	logger *logger.Logger,
	tracer trace.Tracer,
) *ChannelSource {
	return newChannelSource(s, limiter, logger, tracer)
}

func newChannelSource(s session, limiter *common.RateLimiter, logger *logger.Logger, tracer trace.Tracer) *ChannelSource {
	return &ChannelSource{
		session: s,
		limiter: limiter,
		logger:  logger.With("component", "discord_channel_source"),
		tracer:  tracer,
	}
}

// ListTextChannels enumerates the guild's text channels in the order Discord
// returns them. Voice channels, categories, forums, and threads are skipped.
func (c *ChannelSource) ListTextChannels(ctx context.Context, communityID string) ([]scanning.Channel, error) {
	ctx, span := c.tracer.Start(ctx, "discord_channel_source.list_text_channels",
		trace.WithAttributes(attribute.String("guild_id", communityID)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	guildChannels, err := c.session.GuildChannels(communityID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}

	var channels []scanning.Channel
	for _, ch := range guildChannels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		channels = append(channels, scanning.Channel{ID: ch.ID, Name: ch.Name})
	}

	span.SetAttributes(attribute.Int("channel_count", len(channels)))
	return channels, nil
}

// FetchMessagesBefore returns up to limit messages strictly older than
// beforeID, newest first, converted to domain records. An empty beforeID
// starts from the channel's most recent message.
func (c *ChannelSource) FetchMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]scanning.MessageRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	messages, err := c.session.ChannelMessages(channelID, limit, beforeID, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for channel %s: %w", channelID, err)
	}

	records := make([]scanning.MessageRecord, 0, len(messages))
	for _, msg := range messages {
		if msg.Author == nil {
			// System messages without an author cannot qualify; skip rather
			// than fabricate author fields.
			continue
		}
		records = append(records, toMessageRecord(msg))
	}

	return records, nil
}

// toMessageRecord converts a Discord message to a domain record.
func toMessageRecord(msg *discordgo.Message) scanning.MessageRecord {
	record := scanning.MessageRecord{
		MessageID:         msg.ID,
		ChannelID:         msg.ChannelID,
		CommunityID:       msg.GuildID,
		Content:           msg.Content,
		AuthorID:          msg.Author.ID,
		AuthorDisplayName: displayName(msg.Author),
		Timestamp:         msg.Timestamp,
		AuthorIsBot:       msg.Author.Bot,
	}

	for _, att := range msg.Attachments {
		record.AttachmentURLs = append(record.AttachmentURLs, att.URL)
	}

	record.EmbedText = embedText(msg.Embeds)

	return record
}

func displayName(user *discordgo.User) string {
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// embedText flattens embed titles and descriptions into a single searchable
// string for the analysis backend.
func embedText(embeds []*discordgo.MessageEmbed) string {
	var parts []string
	for _, embed := range embeds {
		if embed.Title != "" {
			parts = append(parts, embed.Title)
		}
		if embed.Description != "" {
			parts = append(parts, embed.Description)
		}
	}
	return strings.Join(parts, "\n")
}
