package bot

import (
	"errors"
	"path/filepath"
	"testing"

	"shbak-bot/internal/config"
	"shbak-bot/internal/store"
	"shbak-bot/internal/xp"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newSweepBot(t *testing.T) (*Bot, *store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	st := store.Open(filepath.Join(t.TempDir(), "data.json"), zap.NewNop())
	return &Bot{
		cfg:    cfg,
		logger: zap.NewNop(),
		store:  st,
		xp:     xp.New(cfg.XP, st, zap.NewNop()),
	}, st
}

func voiceState(userID, channelID string) *discordgo.VoiceState {
	return &discordgo.VoiceState{UserID: userID, ChannelID: channelID}
}

func TestSweepGuildVoiceXPSkipsFailedLookups(t *testing.T) {
	b, st := newSweepBot(t)

	muted := voiceState("u-muted", "vc1")
	muted.SelfMute = true

	guild := &discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			voiceState("u1", "vc1"),
			voiceState("u-broken", "vc1"),
			voiceState("u2", "vc1"),
			muted,
			voiceState("b1", "vc1"),
		},
	}

	lookup := func(guildID, userID string) (*discordgo.Member, error) {
		switch userID {
		case "u-broken":
			return nil, errors.New("member fetch failed")
		case "b1":
			return &discordgo.Member{User: &discordgo.User{ID: userID, Bot: true}}, nil
		default:
			return &discordgo.Member{User: &discordgo.User{ID: userID}}, nil
		}
	}

	b.sweepGuildVoiceXP(guild, lookup)

	award := b.cfg.XP.VoiceAward
	for _, userID := range []string{"u1", "u2"} {
		if got, _ := st.UserXP("g1", userID); got != award {
			t.Fatalf("expected %s to earn %d voice XP, got %d", userID, award, got)
		}
	}
	// A failing lookup must not starve the states behind it.
	for _, userID := range []string{"u-broken", "u-muted", "b1"} {
		if _, ok := st.UserXP("g1", userID); ok {
			t.Fatalf("expected no voice XP for %s", userID)
		}
	}
}

func TestMemberCursor(t *testing.T) {
	members := []*discordgo.Member{
		{User: &discordgo.User{ID: "u1"}},
		{User: &discordgo.User{ID: "u2"}},
	}
	cursor, ok := memberCursor(members)
	if !ok || cursor != "u2" {
		t.Fatalf("expected cursor u2, got %q (ok=%v)", cursor, ok)
	}

	if _, ok := memberCursor([]*discordgo.Member{{User: &discordgo.User{ID: "u1"}}, {}}); ok {
		t.Fatalf("expected no cursor when the trailing member has no user")
	}
	if _, ok := memberCursor([]*discordgo.Member{nil}); ok {
		t.Fatalf("expected no cursor for a nil trailing member")
	}
}
