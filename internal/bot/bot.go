package bot

import (
	"context"
	"fmt"
	"time"

	"shbak-bot/internal/config"
	"shbak-bot/internal/giveaway"
	"shbak-bot/internal/modules/audit"
	"shbak-bot/internal/modules/warnings"
	"shbak-bot/internal/store"
	"shbak-bot/internal/xp"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *store.Store
	xp        *xp.Engine
	warnings  *warnings.Module
	giveaways *giveaway.Manager
	audit     *audit.Logger
	session   *discordgo.Session
	sched     gocron.Scheduler
}

func New(cfg config.Config, logger *zap.Logger, st *store.Store, xpEngine *xp.Engine, warningsModule *warnings.Module, giveawayManager *giveaway.Manager, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		xp:        xpEngine,
		warnings:  warningsModule,
		giveaways: giveawayManager,
		audit:     auditLogger,
		session:   session,
	}

	auditLogger.Bind(session)
	giveawayManager.SetResolver(b.resolveGiveaway)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	return b.startVoiceSweep()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.sched != nil {
		_ = b.sched.Shutdown()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
	_ = session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: "dnd",
		Activities: []*discordgo.Activity{
			{Name: b.cfg.Activity, Type: discordgo.ActivityTypeGame},
		},
	})
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()

	// Every message earns its XP, even one the warning module is about
	// to delete.
	b.xp.Award(msg.Author.ID, msg.GuildID, b.cfg.XP.MessageAward)
	if len(msg.Attachments) > 0 && b.xp.AttachmentBonus(msg.Author.ID, msg.GuildID) {
		b.acknowledgeAttachmentBonus(session, msg)
	}

	b.warnings.HandleMessage(ctx, session, b.guild(msg.GuildID), b.botMember(msg.GuildID), msg)
}

func (b *Bot) acknowledgeAttachmentBonus(session *discordgo.Session, msg *discordgo.MessageCreate) {
	content := fmt.Sprintf("🎉 **%s**, you earned a bonus %d XP for sharing an attachment!", msg.Author.Username, b.cfg.XP.AttachmentAward)
	ack, err := session.ChannelMessageSend(msg.ChannelID, content)
	if err != nil || ack == nil {
		return
	}
	time.AfterFunc(5*time.Second, func() {
		_ = session.ChannelMessageDelete(msg.ChannelID, ack.ID)
	})
}

func (b *Bot) startVoiceSweep() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	interval := time.Duration(b.cfg.XP.VoiceSweepSeconds) * time.Second
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(b.sweepVoiceXP),
	); err != nil {
		return err
	}
	sched.Start()
	b.sched = sched
	return nil
}

type memberLookup func(guildID, userID string) (*discordgo.Member, error)

// sweepVoiceXP awards voice-presence XP across every guild.
func (b *Bot) sweepVoiceXP() {
	if b.session == nil || b.session.State == nil {
		return
	}
	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		b.sweepGuildVoiceXP(guild, b.member)
	}
}

// sweepGuildVoiceXP awards XP to every eligible voice state. A failing
// member lookup is logged and skipped, never aborting the sweep for the
// rest of the guild.
func (b *Bot) sweepGuildVoiceXP(guild *discordgo.Guild, lookup memberLookup) {
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID == "" || state.SelfMute || state.SelfDeaf {
			continue
		}
		member, err := lookup(guild.ID, state.UserID)
		if err != nil {
			b.logger.Warn("voice xp member lookup failed",
				zap.String("guild_id", guild.ID),
				zap.String("user_id", state.UserID),
				zap.Error(err),
			)
			continue
		}
		if member == nil || member.User == nil || member.User.Bot {
			continue
		}
		b.xp.Award(state.UserID, guild.ID, b.cfg.XP.VoiceAward)
	}
}

func (b *Bot) resolveGiveaway(messageID string, rec giveaway.Record, manual bool) {
	users, err := b.session.MessageReactions(rec.ChannelID, messageID, b.cfg.Giveaway.Emoji, 100, "", "")
	if err != nil {
		b.logger.Warn("giveaway reaction fetch failed", zap.String("message_id", messageID), zap.Error(err))
	}

	winner, ok := giveaway.PickWinner(giveaway.Eligible(users))
	if ok {
		_, _ = b.session.ChannelMessageSend(rec.ChannelID,
			fmt.Sprintf("🎉 Congratulations <@%s>! You are the lucky winner of **%s**!", winner, rec.Prize))
	} else {
		_, _ = b.session.ChannelMessageSend(rec.ChannelID, "❌ No valid entries, the giveaway has ended with no winner.")
	}

	b.logger.Info("giveaway resolved",
		zap.String("message_id", messageID),
		zap.String("winner", winner),
		zap.Bool("manual", manual),
	)
}

// broadcastGiveaway DMs every non-bot member about a new giveaway with a
// bounded fan-out. Each send fails independently.
func (b *Bot) broadcastGiveaway(guildID, guildName, prize, messageURL string) {
	group := new(errgroup.Group)
	group.SetLimit(b.cfg.Giveaway.DMConcurrency)

	after := ""
	for {
		members, err := b.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			b.logger.Warn("giveaway member fetch failed", zap.String("guild_id", guildID), zap.Error(err))
			break
		}
		if len(members) == 0 {
			break
		}
		for _, member := range members {
			if member == nil || member.User == nil || member.User.Bot {
				continue
			}
			userID := member.User.ID
			group.Go(func() error {
				b.dmGiveaway(userID, guildName, prize, messageURL)
				return nil
			})
		}
		cursor, ok := memberCursor(members)
		if !ok || len(members) < 1000 {
			break
		}
		after = cursor
	}

	_ = group.Wait()
}

// memberCursor yields the pagination cursor for the next member page.
// A trailing entry without a user ends the pagination.
func memberCursor(members []*discordgo.Member) (string, bool) {
	last := members[len(members)-1]
	if last == nil || last.User == nil {
		return "", false
	}
	return last.User.ID, true
}

func (b *Bot) dmGiveaway(userID, guildName, prize, messageURL string) {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Warn("giveaway dm failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	content := fmt.Sprintf("🎉 A new giveaway has started in **%s**! 🎁\n**Prize:** **%s**\nHead to the channel and react with %s to enter here: %s",
		guildName, prize, b.cfg.Giveaway.Emoji, messageURL)
	if _, err := b.session.ChannelMessageSend(channel.ID, content); err != nil {
		b.logger.Warn("giveaway dm failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) guild(guildID string) *discordgo.Guild {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil {
		return guild
	}
	guild, _ = b.session.Guild(guildID)
	return guild
}

func (b *Bot) member(guildID, userID string) (*discordgo.Member, error) {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member, nil
	}
	return b.session.GuildMember(guildID, userID)
}

// botMember resolves the bot's own membership in the guild, best-effort.
func (b *Bot) botMember(guildID string) *discordgo.Member {
	if b.session == nil || b.session.State == nil || b.session.State.User == nil {
		return nil
	}
	member, err := b.member(guildID, b.session.State.User.ID)
	if err != nil {
		return nil
	}
	return member
}

func (b *Bot) memberName(guildID, userID string) string {
	member, err := b.member(guildID, userID)
	if err != nil || member == nil || member.User == nil {
		return "Unknown User"
	}
	return member.User.Username
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
