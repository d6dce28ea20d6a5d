package audit

import (
	"testing"

	"shbak-bot/internal/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newBoundLogger(t *testing.T, channels []*discordgo.Channel) *Logger {
	t.Helper()
	state := discordgo.NewState()
	if err := state.GuildAdd(&discordgo.Guild{ID: "g1", Channels: channels}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	l := NewLogger(zap.NewNop(), config.AuditConfig{ChannelName: "log", CategoryName: "admin"})
	l.Bind(&discordgo.Session{State: state})
	return l
}

func TestChannelIDResolvesSink(t *testing.T) {
	l := newBoundLogger(t, []*discordgo.Channel{
		{ID: "cat-admin", GuildID: "g1", Name: "admin", Type: discordgo.ChannelTypeGuildCategory},
		{ID: "cat-general", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildCategory},
		{ID: "ch-decoy", GuildID: "g1", Name: "log", ParentID: "cat-general", Type: discordgo.ChannelTypeGuildText},
		{ID: "ch-sink", GuildID: "g1", Name: "log", ParentID: "cat-admin", Type: discordgo.ChannelTypeGuildText},
	})

	id, ok := l.channelID("g1")
	if !ok || id != "ch-sink" {
		t.Fatalf("expected ch-sink, got %q (ok=%v)", id, ok)
	}
}

func TestChannelIDMissingSink(t *testing.T) {
	l := newBoundLogger(t, []*discordgo.Channel{
		{ID: "cat-admin", GuildID: "g1", Name: "admin", Type: discordgo.ChannelTypeGuildCategory},
		{ID: "ch-chat", GuildID: "g1", Name: "chat", ParentID: "cat-admin", Type: discordgo.ChannelTypeGuildText},
	})

	if _, ok := l.channelID("g1"); ok {
		t.Fatalf("expected no sink without a matching channel")
	}
}

func TestChannelIDRequiresCategory(t *testing.T) {
	l := newBoundLogger(t, []*discordgo.Channel{
		{ID: "ch-top", GuildID: "g1", Name: "log", Type: discordgo.ChannelTypeGuildText},
	})

	if _, ok := l.channelID("g1"); ok {
		t.Fatalf("expected a top-level log channel not to qualify")
	}
}

func TestSendEmbedUnbound(t *testing.T) {
	l := NewLogger(zap.NewNop(), config.AuditConfig{ChannelName: "log", CategoryName: "admin"})
	// Must be a no-op before Bind.
	l.SendEmbed("g1", Embed("title", "desc", 0x3498db, ""))
}

func TestEmbed(t *testing.T) {
	embed := Embed("title", "desc", 0xf39c12, "https://cdn.example/avatar.png")
	if embed.Title != "title" || embed.Description != "desc" || embed.Color != 0xf39c12 {
		t.Fatalf("unexpected embed: %+v", embed)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://cdn.example/avatar.png" {
		t.Fatalf("expected thumbnail, got %+v", embed.Thumbnail)
	}
	if Embed("t", "d", 0, "").Thumbnail != nil {
		t.Fatalf("expected no thumbnail when URL empty")
	}
}
