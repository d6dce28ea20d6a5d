package giveaway

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a giveaway id has no live record, either
// because it never existed or because it already resolved.
var ErrNotFound = errors.New("giveaway not found")

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Record tracks one active giveaway, keyed by its announcement message.
// Records are in-memory only; a restart abandons in-flight giveaways.
type Record struct {
	GuildID   string
	ChannelID string
	Prize     string
	EndsAt    time.Time
}

// Resolver performs the actual drawing once a record is taken. manual is
// true for /giveaway end, false for timer expiry.
type Resolver func(messageID string, rec Record, manual bool)

// Manager owns the giveaway records and their deadline timers. A record
// is deleted the moment either resolution path claims it, which is what
// makes the timer/manual race resolve cleanly: the loser sees not-found.
type Manager struct {
	mu       sync.Mutex
	clock    Clock
	logger   *zap.Logger
	resolver Resolver
	records  map[string]Record
}

func New(logger *zap.Logger) *Manager {
	return &Manager{
		clock:   realClock{},
		logger:  logger,
		records: make(map[string]Record),
	}
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

func (m *Manager) SetResolver(resolver Resolver) {
	m.resolver = resolver
}

// Start registers a record under the announcement message id and arms the
// deadline timer.
func (m *Manager) Start(messageID, guildID, channelID, prize string, duration time.Duration) Record {
	rec := Record{
		GuildID:   guildID,
		ChannelID: channelID,
		Prize:     prize,
		EndsAt:    m.clock.Now().Add(duration),
	}

	m.mu.Lock()
	m.records[messageID] = rec
	m.mu.Unlock()

	m.clock.AfterFunc(duration, func() {
		m.fire(messageID)
	})

	m.logger.Info("giveaway started",
		zap.String("message_id", messageID),
		zap.String("guild_id", guildID),
		zap.String("prize", prize),
		zap.Time("ends_at", rec.EndsAt),
	)
	return rec
}

// End resolves a giveaway ahead of its deadline. Returns ErrNotFound when
// the record is gone, including when the timer got there first.
func (m *Manager) End(messageID string) error {
	rec, ok := m.take(messageID)
	if !ok {
		return ErrNotFound
	}
	m.resolve(messageID, rec, true)
	return nil
}

// Get reports the live record for a message id, if any.
func (m *Manager) Get(messageID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[messageID]
	return rec, ok
}

// Active returns the number of unresolved giveaways.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Manager) fire(messageID string) {
	rec, ok := m.take(messageID)
	if !ok {
		return
	}
	m.resolve(messageID, rec, false)
}

func (m *Manager) take(messageID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[messageID]
	if ok {
		delete(m.records, messageID)
	}
	return rec, ok
}

func (m *Manager) resolve(messageID string, rec Record, manual bool) {
	if m.resolver == nil {
		m.logger.Warn("giveaway resolved without resolver", zap.String("message_id", messageID))
		return
	}
	m.resolver(messageID, rec, manual)
}

// Eligible filters reaction users down to entrant ids, dropping bot and
// system accounts.
func Eligible(users []*discordgo.User) []string {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		if user == nil || user.Bot || user.System {
			continue
		}
		ids = append(ids, user.ID)
	}
	return ids
}

// PickWinner draws one entrant uniformly at random.
func PickWinner(ids []string) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	return ids[rand.Intn(len(ids))], true
}
