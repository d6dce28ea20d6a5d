package warnings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"shbak-bot/internal/config"
	"shbak-bot/internal/modules/audit"
	"shbak-bot/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeSession struct {
	deleted  []string
	sent     []string
	timeouts []string
	dmFail   bool
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "sent"}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmFail {
		return nil, errors.New("cannot open dm")
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) GuildMemberTimeout(guildID, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	f.timeouts = append(f.timeouts, userID)
	return nil
}

func newTestModule(t *testing.T, cfg config.ModerationConfig) *Module {
	t.Helper()
	st := store.Open(filepath.Join(t.TempDir(), "data.json"), zap.NewNop())
	auditLogger := audit.NewLogger(zap.NewNop(), config.AuditConfig{ChannelName: "log", CategoryName: "admin"})
	return New(cfg, st, auditLogger, zap.NewNop())
}

func testConfig() config.ModerationConfig {
	return config.ModerationConfig{
		ForbiddenTerms: []string{"badword", "otherword"},
		WarnThreshold:  3,
		TimeoutMinutes: 15,
	}
}

func message(id, userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        id,
			ChannelID: "c1",
			GuildID:   "g1",
			Content:   content,
			Author:    &discordgo.User{ID: userID, Username: "alice"},
		},
	}
}

func TestMatchSubstring(t *testing.T) {
	m := newTestModule(t, testConfig())

	cases := []struct {
		content string
		want    bool
	}{
		{"badword", true},
		{"BADWORD", true},
		{"that was a badword indeed", true},
		{"xbadwordx", true},
		{"perfectly fine", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.content); got != tc.want {
			t.Fatalf("Match(%q): expected %v, got %v", tc.content, tc.want, got)
		}
	}
}

func TestMatchDefaultTerms(t *testing.T) {
	m := newTestModule(t, config.DefaultConfig().Moderation)

	for _, term := range []string{"fuck", "idiot", "كلب", "عرص", "قحبه", "يا حيوان"} {
		if !m.Match(term) {
			t.Fatalf("expected default list to flag %q", term)
		}
	}
	if m.Match("perfectly fine") {
		t.Fatalf("expected clean content to pass the default list")
	}
}

func TestMatchExact(t *testing.T) {
	cfg := testConfig()
	cfg.MatchExact = true
	m := newTestModule(t, cfg)

	if !m.Match("badword") {
		t.Fatalf("expected exact match to trip")
	}
	if !m.Match("BadWord") {
		t.Fatalf("expected case-insensitive exact match to trip")
	}
	if m.Match("that was a badword indeed") {
		t.Fatalf("expected substring not to trip in exact mode")
	}
}

func TestHandleMessageCleanContent(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{}

	count, flagged := m.HandleMessage(context.Background(), session, nil, nil, message("m1", "u1", "hello there"))
	if flagged || count != 0 {
		t.Fatalf("expected clean message to pass, got count=%d flagged=%v", count, flagged)
	}
	if len(session.deleted) != 0 || len(session.sent) != 0 {
		t.Fatalf("expected no session activity for clean message")
	}
}

func TestHandleMessageIgnoresBots(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{}

	msg := message("m1", "b1", "badword")
	msg.Author.Bot = true
	if _, flagged := m.HandleMessage(context.Background(), session, nil, nil, msg); flagged {
		t.Fatalf("expected bot message to be ignored")
	}
}

func TestHandleMessageWarns(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{}

	count, flagged := m.HandleMessage(context.Background(), session, nil, nil, message("m1", "u1", "badword"))
	if !flagged || count != 1 {
		t.Fatalf("expected first warning, got count=%d flagged=%v", count, flagged)
	}
	if len(session.deleted) != 1 || session.deleted[0] != "m1" {
		t.Fatalf("expected the offending message deleted, got %v", session.deleted)
	}
	// Channel warning plus the DM notification.
	if len(session.sent) != 2 {
		t.Fatalf("expected 2 messages sent, got %d", len(session.sent))
	}
	if len(session.timeouts) != 0 {
		t.Fatalf("expected no timeout below the threshold")
	}
}

func TestEscalationBoundary(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{}

	for i := 1; i <= 2; i++ {
		count, _ := m.HandleMessage(context.Background(), session, nil, nil, message("m", "u1", "badword"))
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}
	if len(session.timeouts) != 0 {
		t.Fatalf("expected no timeout at 2 warnings")
	}

	if count, _ := m.HandleMessage(context.Background(), session, nil, nil, message("m", "u1", "badword")); count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if len(session.timeouts) != 1 {
		t.Fatalf("expected timeout at the threshold, got %d", len(session.timeouts))
	}

	// The counter never resets, so every violation past the threshold
	// escalates again.
	m.HandleMessage(context.Background(), session, nil, nil, message("m", "u1", "badword"))
	m.HandleMessage(context.Background(), session, nil, nil, message("m", "u1", "badword"))
	if len(session.timeouts) != 3 {
		t.Fatalf("expected repeated escalation, got %d timeouts", len(session.timeouts))
	}
}

func TestEscalationSkipsUnmoderatable(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{}
	guild := &discordgo.Guild{ID: "g1", OwnerID: "u1"}

	for i := 0; i < 3; i++ {
		m.HandleMessage(context.Background(), session, guild, nil, message("m", "u1", "badword"))
	}
	if len(session.timeouts) != 0 {
		t.Fatalf("expected no timeout for the guild owner, got %d", len(session.timeouts))
	}
}

func TestDMFailureDoesNotBlockWarning(t *testing.T) {
	m := newTestModule(t, testConfig())
	session := &fakeSession{dmFail: true}

	count, flagged := m.HandleMessage(context.Background(), session, nil, nil, message("m1", "u1", "badword"))
	if !flagged || count != 1 {
		t.Fatalf("expected warning despite closed DMs, got count=%d flagged=%v", count, flagged)
	}
	if len(session.sent) != 1 {
		t.Fatalf("expected channel warning only, got %d sends", len(session.sent))
	}
}

func TestModeratable(t *testing.T) {
	adminRole := &discordgo.Role{ID: "r-admin", Permissions: discordgo.PermissionAdministrator}
	plainRole := &discordgo.Role{ID: "r-plain", Permissions: discordgo.PermissionSendMessages}
	guild := &discordgo.Guild{ID: "g1", OwnerID: "owner", Roles: []*discordgo.Role{adminRole, plainRole}}

	if Moderatable(guild, nil, nil, "owner") {
		t.Fatalf("expected owner not moderatable")
	}
	admin := &discordgo.Member{Roles: []string{"r-admin"}}
	if Moderatable(guild, nil, admin, "u1") {
		t.Fatalf("expected administrator not moderatable")
	}
	plain := &discordgo.Member{Roles: []string{"r-plain"}}
	if !Moderatable(guild, nil, plain, "u1") {
		t.Fatalf("expected regular member moderatable")
	}
	if !Moderatable(nil, nil, nil, "u1") {
		t.Fatalf("expected moderatable without guild context")
	}
}

func TestModeratableRoleHierarchy(t *testing.T) {
	lowRole := &discordgo.Role{ID: "r-low", Position: 1}
	midRole := &discordgo.Role{ID: "r-mid", Position: 5}
	highRole := &discordgo.Role{ID: "r-high", Position: 10}
	guild := &discordgo.Guild{ID: "g1", OwnerID: "owner", Roles: []*discordgo.Role{lowRole, midRole, highRole}}

	botMember := &discordgo.Member{Roles: []string{"r-mid"}}

	above := &discordgo.Member{Roles: []string{"r-high"}}
	if Moderatable(guild, botMember, above, "u1") {
		t.Fatalf("expected member above the bot's top role not moderatable")
	}
	equal := &discordgo.Member{Roles: []string{"r-mid"}}
	if Moderatable(guild, botMember, equal, "u2") {
		t.Fatalf("expected member sharing the bot's top role not moderatable")
	}
	below := &discordgo.Member{Roles: []string{"r-low"}}
	if !Moderatable(guild, botMember, below, "u3") {
		t.Fatalf("expected member below the bot's top role moderatable")
	}
}
