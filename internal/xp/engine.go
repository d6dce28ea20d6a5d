package xp

import (
	"math"
	"sort"
	"sync"
	"time"

	"shbak-bot/internal/config"
	"shbak-bot/internal/store"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Engine computes XP awards, levels and rankings on top of the store.
// The attachment cooldown is in-memory only and resets on restart.
type Engine struct {
	cfg    config.XPConfig
	store  *store.Store
	logger *zap.Logger
	clock  Clock

	mu       sync.Mutex
	cooldown map[string]time.Time
}

func New(cfg config.XPConfig, st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		clock:    realClock{},
		cooldown: make(map[string]time.Time),
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

// Award adds amount to the user's XP in the guild. A missing guild ID is
// a no-op, direct messages never earn XP.
func (e *Engine) Award(userID, guildID string, amount int) {
	if guildID == "" {
		return
	}
	e.store.AddXP(guildID, userID, amount)
}

// Level derives the level from total XP: floor(0.1 * sqrt(xp)).
func Level(xp int) int {
	return int(math.Floor(0.1 * math.Sqrt(float64(xp))))
}

// NextLevelXP inverts the level formula: the XP total at which the next
// level is reached.
func NextLevelXP(level int) int {
	return int(math.Pow(float64(level+1)/0.1, 2))
}

// Rank returns the user's 1-based position in the guild ordered by XP
// descending. Ties keep the snapshot order rather than sharing a rank.
func (e *Engine) Rank(guildID, userID string) (int, bool) {
	entries := e.sortedEntries(guildID)
	for i, entry := range entries {
		if entry.UserID == userID {
			return i + 1, true
		}
	}
	return 0, false
}

// Top returns the first n entries of the guild leaderboard.
func (e *Engine) Top(guildID string, n int) []store.Entry {
	entries := e.sortedEntries(guildID)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func (e *Engine) sortedEntries(guildID string) []store.Entry {
	entries := e.store.GuildXP(guildID)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].XP > entries[j].XP
	})
	return entries
}

// AttachmentBonus awards the attachment XP bonus at most once per
// cooldown window per (user, guild). Returns whether the bonus was paid.
func (e *Engine) AttachmentBonus(userID, guildID string) bool {
	if guildID == "" {
		return false
	}
	window := time.Duration(e.cfg.AttachmentCooldownSeconds) * time.Second
	key := userID + "-" + guildID
	now := e.clock.Now()

	e.mu.Lock()
	if last, ok := e.cooldown[key]; ok && now.Sub(last) < window {
		e.mu.Unlock()
		return false
	}
	e.cooldown[key] = now
	e.mu.Unlock()

	e.store.AddXP(guildID, userID, e.cfg.AttachmentAward)
	return true
}
