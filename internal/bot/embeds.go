package bot

import (
	"fmt"
	"strings"

	"shbak-bot/internal/store"
	"shbak-bot/internal/xp"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) helpEmbed(session *discordgo.Session) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:       0x3498db,
		Title:       "🛠️ Shbak-shbak Bot Command List",
		Description: "I'm here to help you manage the server and have some fun! Here are the commands you can use:",
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "General Commands",
				Value:  "`/help` - Shows this message.\n`/rank` - Displays your current XP and level.\n`/top` - Shows the server's top 10 leaderboard.",
				Inline: true,
			},
			{
				Name:   "Moderation",
				Value:  "`/clear <number>` - Deletes a specified number of messages.\n`/timeout <user> <min>` - Temporarily mutes a member.\n`/kick <user>` - Kicks a member from the server.\n`/ban <user>` - Bans a member from the server.",
				Inline: true,
			},
			{
				Name:   "Giveaway",
				Value:  "`/giveaway start <min> <prize>` - Starts a new giveaway.\n`/giveaway end <messageId>` - Manually ends an active giveaway.",
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Use these commands to make the server better! 🚀"},
	}
	if session.State != nil && session.State.User != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: session.State.User.AvatarURL("")}
	}
	return embed
}

func rankEmbed(user *discordgo.User, total, rank, level int) *discordgo.MessageEmbed {
	nextLevelXP := xp.NextLevelXP(level)
	progress := float64(total) / float64(nextLevelXP)
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * 10)
	bar := strings.Repeat("⬜", filled) + strings.Repeat("⬛", 10-filled)

	color := 0x2ecc71
	switch {
	case rank == 1:
		color = 0xffd700
	case rank == 2 || rank == 3:
		color = 0xc0c0c0
	}

	return &discordgo.MessageEmbed{
		Color:       color,
		Title:       fmt.Sprintf("📊 %s's Rank", user.Username),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("")},
		Description: fmt.Sprintf("**Next Level Progress:**\n%s %d%%", bar, int(progress*100)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Current Level", Value: fmt.Sprintf("**%d**", level), Inline: true},
			{Name: "Total XP", Value: fmt.Sprintf("**%d**", total), Inline: true},
			{Name: "Server Rank", Value: fmt.Sprintf("**#%d**", rank), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Need %d XP to reach Level %d!", nextLevelXP-total, level+1),
		},
	}
}

func (b *Bot) topEmbed(guildID string, entries []store.Entry) *discordgo.MessageEmbed {
	medals := []string{"🥇", "🥈", "🥉"}

	var list strings.Builder
	for i, entry := range entries {
		prefix := fmt.Sprintf("**#%d**", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		fmt.Fprintf(&list, "%s **%s** - Level %d (%d XP)\n",
			prefix, b.memberName(guildID, entry.UserID), xp.Level(entry.XP), entry.XP)
	}

	embed := &discordgo.MessageEmbed{
		Color:       0x2ecc71,
		Title:       "🏆 Top 10 XP Leaderboard",
		Description: list.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Can you make it to the top 10? Keep chatting! ✨"},
	}
	if guild := b.guild(guildID); guild != nil && guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: discordgo.EndpointGuildIcon(guild.ID, guild.Icon)}
	}
	return embed
}
