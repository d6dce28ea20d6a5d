package warnings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shbak-bot/internal/config"
	"shbak-bot/internal/modules/audit"
	"shbak-bot/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Session is the slice of the Discord API the module touches.
// *discordgo.Session satisfies it; tests substitute a recorder.
type Session interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
}

// Module detects forbidden terms and walks a user through the warning
// escalation: delete, warn, count, and a timed mute at the threshold. The
// counter is global per user and never resets, so every violation at or
// past the threshold escalates again.
type Module struct {
	cfg    config.ModerationConfig
	store  *store.Store
	audit  *audit.Logger
	logger *zap.Logger
	terms  []string
}

func New(cfg config.ModerationConfig, st *store.Store, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	terms := make([]string, 0, len(cfg.ForbiddenTerms))
	for _, term := range cfg.ForbiddenTerms {
		terms = append(terms, strings.ToLower(term))
	}
	return &Module{cfg: cfg, store: st, audit: auditLogger, logger: logger, terms: terms}
}

// Match reports whether content trips the forbidden-term policy.
func (m *Module) Match(content string) bool {
	lowered := strings.ToLower(content)
	for _, term := range m.terms {
		if m.cfg.MatchExact {
			if lowered == term {
				return true
			}
			continue
		}
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// HandleMessage runs the escalation for one inbound message. botMember is
// the bot's own membership in the guild, used for the hierarchy gate; nil
// is allowed. Returns the updated warning count and whether the message
// was flagged.
func (m *Module) HandleMessage(ctx context.Context, session Session, guild *discordgo.Guild, botMember *discordgo.Member, msg *discordgo.MessageCreate) (int, bool) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return 0, false
	}
	if !m.Match(msg.Content) {
		return 0, false
	}

	_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)

	count := m.store.IncrementWarn(msg.Author.ID)
	m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, "warning_issued",
		fmt.Sprintf("count=%d threshold=%d", count, m.cfg.WarnThreshold))

	warning := fmt.Sprintf("🚫 **%s**, please watch your language. This is warning #%d.", msg.Author.Username, count)
	if _, err := session.ChannelMessageSend(msg.ChannelID, warning); err != nil {
		m.logger.Warn("channel warning send failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}

	m.audit.SendEmbed(msg.GuildID, audit.Embed(
		"⚠️ Warning Issued",
		fmt.Sprintf("**User:** %s (%s)\n**Reason:** Used a forbidden word.\n**Total Warnings:** %d/%d",
			msg.Author.Username, msg.Author.ID, count, m.cfg.WarnThreshold),
		0xf39c12, "",
	))

	m.notifyUser(session, msg.Author.ID, guildName(guild, msg.GuildID), count)

	if count >= m.cfg.WarnThreshold {
		m.escalate(ctx, session, guild, botMember, msg, count)
	}
	return count, true
}

func (m *Module) notifyUser(session Session, userID, guildName string, count int) {
	channel, err := session.UserChannelCreate(userID)
	if err != nil {
		m.logger.Warn("warning dm failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	content := fmt.Sprintf("⚠️ You received a warning in **%s** for using a forbidden word. This is warning **#%d** out of %d.",
		guildName, count, m.cfg.WarnThreshold)
	if _, err := session.ChannelMessageSend(channel.ID, content); err != nil {
		m.logger.Warn("warning dm failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (m *Module) escalate(ctx context.Context, session Session, guild *discordgo.Guild, botMember *discordgo.Member, msg *discordgo.MessageCreate, count int) {
	if !Moderatable(guild, botMember, msg.Member, msg.Author.ID) {
		m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, "timeout_failed", "member not moderatable")
		m.audit.SendEmbed(msg.GuildID, audit.Embed(
			"❌ Timeout Failed",
			fmt.Sprintf("Tried to timeout %s but I'm missing permissions.", msg.Author.Username),
			0x95a5a6, "",
		))
		return
	}

	until := time.Now().Add(time.Duration(m.cfg.TimeoutMinutes) * time.Minute)
	if err := session.GuildMemberTimeout(msg.GuildID, msg.Author.ID, &until); err != nil {
		m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, "timeout_failed", err.Error())
		m.audit.SendEmbed(msg.GuildID, audit.Embed(
			"❌ Timeout Failed",
			fmt.Sprintf("Tried to timeout %s but I'm missing permissions.", msg.Author.Username),
			0x95a5a6, "",
		))
		return
	}

	m.audit.Log(ctx, audit.LevelCrit, msg.GuildID, msg.Author.ID, "timeout_applied",
		fmt.Sprintf("count=%d minutes=%d", count, m.cfg.TimeoutMinutes))
	m.audit.SendEmbed(msg.GuildID, audit.Embed(
		"⏱️ User Timed Out",
		fmt.Sprintf("**User:** %s\n**Action:** Reached %d warnings and was timed out for %d minutes.",
			msg.Author.Username, m.cfg.WarnThreshold, m.cfg.TimeoutMinutes),
		0xe74c3c, "",
	))
}

// Moderatable mirrors the platform's moderatable check: owners,
// administrators, and members whose top role sits at or above the bot's
// cannot be timed out. A nil botMember skips the hierarchy comparison.
// The bot layer shares this gate.
func Moderatable(guild *discordgo.Guild, botMember, member *discordgo.Member, userID string) bool {
	if guild == nil {
		return true
	}
	if guild.OwnerID == userID {
		return false
	}
	if member == nil {
		return true
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil && role.Permissions&discordgo.PermissionAdministrator != 0 {
			return false
		}
	}
	if botMember != nil && topRolePosition(roleMap, member.Roles) >= topRolePosition(roleMap, botMember.Roles) {
		return false
	}
	return true
}

func topRolePosition(roles map[string]*discordgo.Role, ids []string) int {
	top := 0
	for _, id := range ids {
		if role := roles[id]; role != nil && role.Position > top {
			top = role.Position
		}
	}
	return top
}

func guildName(guild *discordgo.Guild, fallback string) string {
	if guild != nil && guild.Name != "" {
		return guild.Name
	}
	return fallback
}
