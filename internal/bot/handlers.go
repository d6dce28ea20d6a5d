package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shbak-bot/internal/giveaway"
	"shbak-bot/internal/modules/audit"
	"shbak-bot/internal/modules/warnings"
	"shbak-bot/internal/xp"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "help":
		b.handleHelp(session, interaction)
	case "clear":
		b.handleClear(ctx, session, interaction, data.Options)
	case "timeout":
		b.handleTimeout(ctx, session, interaction, data.Options)
	case "kick":
		b.handleKick(ctx, session, interaction, data.Options)
	case "ban":
		b.handleBan(ctx, session, interaction, data.Options)
	case "giveaway":
		b.handleGiveaway(ctx, session, interaction, data.Options)
	case "rank":
		b.handleRank(session, interaction)
	case "top":
		b.handleTop(session, interaction)
	}
}

func (b *Bot) handleHelp(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.respondEmbed(session, interaction, b.helpEmbed(session), true)
}

func (b *Bot) handleClear(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}
	if !hasPermission(interaction, discordgo.PermissionManageMessages) {
		b.respond(session, interaction, "❌ You don't have permission to clear messages.", true)
		return
	}

	amount, _ := optionInt(options, "amount")
	if amount < 1 || amount > 100 {
		b.respond(session, interaction, "❌ Number must be between 1 and 100.", true)
		return
	}

	messages, err := session.ChannelMessages(interaction.ChannelID, int(amount), "", "", "")
	if err != nil {
		b.respond(session, interaction, "❌ Failed to fetch messages.", true)
		return
	}
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	if err := session.ChannelMessagesBulkDelete(interaction.ChannelID, ids); err != nil {
		b.respond(session, interaction, "❌ Failed to delete messages.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("✅ Successfully deleted %d messages.", len(ids)), true)

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, moderator.ID, "messages_cleared", fmt.Sprintf("count=%d channel=%s", len(ids), interaction.ChannelID))
	b.audit.SendEmbed(interaction.GuildID, audit.Embed(
		"🧹 Messages Cleared",
		fmt.Sprintf("%s deleted **%d** messages in <#%s>.", moderator.Username, len(ids), interaction.ChannelID),
		0x3498db, moderator.AvatarURL(""),
	))
}

func (b *Bot) handleTimeout(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}
	if !hasPermission(interaction, discordgo.PermissionModerateMembers) {
		b.respond(session, interaction, "❌ You don't have permission to timeout members.", true)
		return
	}

	user := optionUser(session, options, "user")
	duration, _ := optionInt(options, "duration")
	reason := optionStringDefault(options, "reason", "No reason provided")
	if user == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}

	member, err := b.member(interaction.GuildID, user.ID)
	if err != nil || member == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}
	if !warnings.Moderatable(b.guild(interaction.GuildID), b.botMember(interaction.GuildID), member, user.ID) {
		b.respond(session, interaction, fmt.Sprintf("❌ I cannot timeout **%s**.\n🔹 Check my role & permissions.", user.Username), true)
		return
	}

	until := time.Now().Add(time.Duration(duration) * time.Minute)
	if err := session.GuildMemberTimeout(interaction.GuildID, user.ID, &until); err != nil {
		b.respond(session, interaction, fmt.Sprintf("❌ I cannot timeout **%s**.\n🔹 Check my role & permissions.", user.Username), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("⏱ **%s** has been muted for **%d** minutes.", user.Username, duration), true)

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, "member_timeout", fmt.Sprintf("minutes=%d moderator=%s", duration, moderator.ID))
	b.audit.SendEmbed(interaction.GuildID, audit.Embed(
		"⏱️ Member Timed Out",
		fmt.Sprintf("**User:** %s (%s)\n**Moderator:** %s\n**Duration:** %d minutes\n**Reason:** %s",
			user.Username, user.ID, moderator.Username, duration, reason),
		0xf1c40f, user.AvatarURL(""),
	))

	if err := b.dmUser(user.ID, fmt.Sprintf("⏱ You have been muted in **%s** for **%d** minutes.\nReason: %s", b.guildName(interaction.GuildID), duration, reason)); err != nil {
		b.audit.SendEmbed(interaction.GuildID, audit.Embed(
			"❌ Timeout DM Failed",
			fmt.Sprintf("Failed to send a DM to %s about their timeout.", user.Username),
			0xe74c3c, "",
		))
	}
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}
	if !hasPermission(interaction, discordgo.PermissionKickMembers) {
		b.respond(session, interaction, "❌ You don't have permission to kick members.", true)
		return
	}

	user := optionUser(session, options, "user")
	reason := optionStringDefault(options, "reason", "No reason provided")
	if user == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}
	member, err := b.member(interaction.GuildID, user.ID)
	if err != nil || member == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}
	if !warnings.Moderatable(b.guild(interaction.GuildID), b.botMember(interaction.GuildID), member, user.ID) {
		b.respond(session, interaction, "❌ Cannot kick this member.", true)
		return
	}

	_ = b.dmUser(user.ID, fmt.Sprintf("👢 You have been kicked from **%s**.\nReason: %s", b.guildName(interaction.GuildID), reason))
	if err := session.GuildMemberDeleteWithReason(interaction.GuildID, user.ID, reason); err != nil {
		b.respond(session, interaction, "❌ Cannot kick this member.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("👢 **%s** has been kicked. Reason: %s", user.Username, reason), true)

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, "member_kicked", "moderator="+moderator.ID)
	b.audit.SendEmbed(interaction.GuildID, audit.Embed(
		"👢 Member Kicked",
		fmt.Sprintf("**User:** %s (%s)\n**Moderator:** %s\n**Reason:** %s", user.Username, user.ID, moderator.Username, reason),
		0xe67e22, user.AvatarURL(""),
	))
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}
	if !hasPermission(interaction, discordgo.PermissionBanMembers) {
		b.respond(session, interaction, "❌ You don't have permission to ban members.", true)
		return
	}

	user := optionUser(session, options, "user")
	reason := optionStringDefault(options, "reason", "No reason provided")
	if user == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}
	member, err := b.member(interaction.GuildID, user.ID)
	if err != nil || member == nil {
		b.respond(session, interaction, "❌ Member not found.", true)
		return
	}
	if !warnings.Moderatable(b.guild(interaction.GuildID), b.botMember(interaction.GuildID), member, user.ID) {
		b.respond(session, interaction, "❌ Cannot ban this member.", true)
		return
	}

	_ = b.dmUser(user.ID, fmt.Sprintf("🚫 You have been banned from **%s**.\nReason: %s", b.guildName(interaction.GuildID), reason))
	if err := session.GuildBanCreateWithReason(interaction.GuildID, user.ID, reason, 0); err != nil {
		b.respond(session, interaction, "❌ Cannot ban this member.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("🚫 **%s** has been banned. Reason: %s", user.Username, reason), true)

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelCrit, interaction.GuildID, user.ID, "member_banned", "moderator="+moderator.ID)
	b.audit.SendEmbed(interaction.GuildID, audit.Embed(
		"🚫 Member Banned",
		fmt.Sprintf("**User:** %s (%s)\n**Moderator:** %s\n**Reason:** %s", user.Username, user.ID, moderator.Username, reason),
		0xe74c3c, user.AvatarURL(""),
	))
}

func (b *Bot) handleGiveaway(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	_ = ctx
	if interaction.GuildID == "" || len(options) == 0 {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}

	sub := options[0]
	switch sub.Name {
	case "start":
		duration, _ := optionInt(sub.Options, "duration")
		prize, _ := optionString(sub.Options, "prize")
		if duration < 1 || prize == "" {
			b.respond(session, interaction, "❌ Invalid giveaway options.", true)
			return
		}

		endsAt := time.Now().Add(time.Duration(duration) * time.Minute)
		announcement := &discordgo.MessageEmbed{
			Title: "🎉 Giveaway Started!",
			Description: fmt.Sprintf("**Prize:** %s\n\nReact with %s to enter!\n\n**Ends:** <t:%d:R>",
				prize, b.cfg.Giveaway.Emoji, endsAt.Unix()),
			Color:  0x5865F2,
			Footer: &discordgo.MessageEmbedFooter{Text: "Giveaway System"},
		}
		msg, err := session.ChannelMessageSendEmbed(interaction.ChannelID, announcement)
		if err != nil || msg == nil {
			b.respond(session, interaction, "❌ Failed to start the giveaway.", true)
			return
		}
		if err := session.MessageReactionAdd(interaction.ChannelID, msg.ID, b.cfg.Giveaway.Emoji); err != nil {
			b.logger.Warn("giveaway reaction seed failed", zap.String("message_id", msg.ID), zap.Error(err))
		}

		b.giveaways.Start(msg.ID, interaction.GuildID, interaction.ChannelID, prize, time.Duration(duration)*time.Minute)
		b.respond(session, interaction, fmt.Sprintf("✅ Giveaway for **%s** has started!", prize), true)

		messageURL := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", interaction.GuildID, interaction.ChannelID, msg.ID)
		go b.broadcastGiveaway(interaction.GuildID, b.guildName(interaction.GuildID), prize, messageURL)
	case "end":
		messageID, _ := optionString(sub.Options, "messageid")
		if err := b.giveaways.End(messageID); err != nil {
			if errors.Is(err, giveaway.ErrNotFound) {
				b.respond(session, interaction, "❌ Giveaway not found or already ended.", true)
				return
			}
			b.respond(session, interaction, "❌ Failed to end the giveaway.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("✅ Giveaway %s has been ended.", messageID), true)
	}
}

func (b *Bot) handleRank(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}
	user := interactionUser(interaction)

	total, ok := b.store.UserXP(interaction.GuildID, user.ID)
	if !ok {
		b.respond(session, interaction, "❌ You don't have any XP yet. Start chatting to gain some!", true)
		return
	}
	level := xp.Level(total)
	rank, _ := b.xp.Rank(interaction.GuildID, user.ID)

	b.respondEmbed(session, interaction, rankEmbed(user, total, rank, level), true)
}

func (b *Bot) handleTop(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "❌ This command must be used in a server.", true)
		return
	}

	entries := b.xp.Top(interaction.GuildID, b.cfg.XP.TopCount)
	if len(entries) == 0 {
		b.respond(session, interaction, "❌ No XP data yet. Be the first to start chatting!", true)
		return
	}

	b.respondEmbed(session, interaction, b.topEmbed(interaction.GuildID, entries), false)
}

func (b *Bot) dmUser(userID, content string) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Warn("dm failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if _, err := b.session.ChannelMessageSend(channel.ID, content); err != nil {
		b.logger.Warn("dm failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (b *Bot) guildName(guildID string) string {
	guild := b.guild(guildID)
	if guild == nil || guild.Name == "" {
		return guildID
	}
	return guild.Name
}

func hasPermission(interaction *discordgo.InteractionCreate, permission int64) bool {
	return interaction.Member != nil && interaction.Member.Permissions&permission != 0
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	if interaction.User != nil {
		return interaction.User
	}
	return &discordgo.User{}
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (int64, bool) {
	for _, option := range options {
		if option != nil && option.Name == name {
			return option.IntValue(), true
		}
	}
	return 0, false
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, option := range options {
		if option != nil && option.Name == name {
			return option.StringValue(), true
		}
	}
	return "", false
}

func optionStringDefault(options []*discordgo.ApplicationCommandInteractionDataOption, name, fallback string) string {
	if value, ok := optionString(options, name); ok && value != "" {
		return value
	}
	return fallback
}

func optionUser(session *discordgo.Session, options []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.User {
	for _, option := range options {
		if option != nil && option.Name == name && option.Type == discordgo.ApplicationCommandOptionUser {
			return option.UserValue(session)
		}
	}
	return nil
}
