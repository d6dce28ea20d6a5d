package audit

import (
	"context"
	"time"

	"shbak-bot/internal/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Logger writes moderation audit entries to the structured log and, when
// the guild has the designated sink channel, as an embed to that channel.
// The sink is a channel named cfg.ChannelName under a category named
// cfg.CategoryName; without one, embed emission is a silent no-op.
type Logger struct {
	logger       *zap.Logger
	session      *discordgo.Session
	channelName  string
	categoryName string
}

func NewLogger(logger *zap.Logger, cfg config.AuditConfig) *Logger {
	return &Logger{
		logger:       logger,
		channelName:  cfg.ChannelName,
		categoryName: cfg.CategoryName,
	}
}

// Bind attaches the Discord session once it exists. Before binding, only
// the structured log receives entries.
func (l *Logger) Bind(session *discordgo.Session) {
	l.session = session
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	_ = ctx
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	)
}

// SendEmbed posts an embed to the guild's audit sink, best-effort.
func (l *Logger) SendEmbed(guildID string, embed *discordgo.MessageEmbed) {
	if l.session == nil || embed == nil {
		return
	}
	channelID, ok := l.channelID(guildID)
	if !ok {
		return
	}
	if _, err := l.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		l.logger.Warn("audit embed send failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// Embed builds a sink embed in the house style.
func Embed(title, description string, color int, thumbnail string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumbnail}
	}
	return embed
}

func (l *Logger) channelID(guildID string) (string, bool) {
	channels := l.guildChannels(guildID)
	if len(channels) == 0 {
		return "", false
	}

	categories := make(map[string]string, len(channels))
	for _, channel := range channels {
		if channel != nil && channel.Type == discordgo.ChannelTypeGuildCategory {
			categories[channel.ID] = channel.Name
		}
	}
	for _, channel := range channels {
		if channel == nil || channel.Name != l.channelName || channel.ParentID == "" {
			continue
		}
		if categories[channel.ParentID] == l.categoryName {
			return channel.ID, true
		}
	}
	return "", false
}

func (l *Logger) guildChannels(guildID string) []*discordgo.Channel {
	if l.session.State != nil {
		if guild, err := l.session.State.Guild(guildID); err == nil && guild != nil && len(guild.Channels) > 0 {
			return guild.Channels
		}
	}
	channels, err := l.session.GuildChannels(guildID)
	if err != nil {
		return nil
	}
	return channels
}
