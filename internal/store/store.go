package store

import (
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Record is the per-user XP entry inside a guild. Absence of a record
// means zero XP; an explicit zero record is never written up front.
type Record struct {
	XP int `json:"xp"`
}

// Document is the full persisted state. It is loaded once at startup and
// rewritten in full after every mutation.
type Document struct {
	Warns map[string]int                `json:"warns"`
	XP    map[string]map[string]*Record `json:"xp"`
}

// Entry is a (user, xp) pair taken from a guild snapshot.
type Entry struct {
	UserID string
	XP     int
}

// Store owns the persisted document. All mutations are serialized through
// its mutex and flushed synchronously, so concurrent handlers never race
// on a stale snapshot.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
	doc    Document
}

// Open reads the document at path. A missing file starts empty; an
// unparsable file is logged and replaced with empty defaults.
func Open(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		doc:    emptyDocument(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("data file unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("data file unparsable, starting empty", zap.String("path", path), zap.Error(err))
		return s
	}
	if doc.Warns == nil {
		doc.Warns = make(map[string]int)
	}
	if doc.XP == nil {
		doc.XP = make(map[string]map[string]*Record)
	}
	s.doc = doc
	return s
}

func emptyDocument() Document {
	return Document{
		Warns: make(map[string]int),
		XP:    make(map[string]map[string]*Record),
	}
}

// AddXP adds amount to the user's XP in the guild, creating the guild and
// user records lazily, and persists the document. Returns the new total.
func (s *Store) AddXP(guildID, userID string, amount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.doc.XP[guildID]
	if guild == nil {
		guild = make(map[string]*Record)
		s.doc.XP[guildID] = guild
	}
	rec := guild[userID]
	if rec == nil {
		rec = &Record{}
		guild[userID] = rec
	}
	rec.XP += amount
	s.saveLocked()
	return rec.XP
}

// UserXP returns the user's XP in the guild. The second return is false
// when no record exists.
func (s *Store) UserXP(guildID, userID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.doc.XP[guildID][userID]
	if rec == nil {
		return 0, false
	}
	return rec.XP, true
}

// GuildXP returns a snapshot of all XP entries in the guild, ordered by
// user ID so repeated calls see the same sequence.
func (s *Store) GuildXP(guildID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	guild := s.doc.XP[guildID]
	if len(guild) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(guild))
	for userID, rec := range guild {
		entries = append(entries, Entry{UserID: userID, XP: rec.XP})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

// IncrementWarn bumps the user's warning count by one, persists, and
// returns the new count. Warnings are keyed by user only, across guilds.
func (s *Store) IncrementWarn(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Warns[userID]++
	count := s.doc.Warns[userID]
	s.saveLocked()
	return count
}

// WarnCount returns the user's current warning count.
func (s *Store) WarnCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Warns[userID]
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyDoc := emptyDocument()
	for userID, count := range s.doc.Warns {
		copyDoc.Warns[userID] = count
	}
	for guildID, guild := range s.doc.XP {
		guildCopy := make(map[string]*Record, len(guild))
		for userID, rec := range guild {
			guildCopy[userID] = &Record{XP: rec.XP}
		}
		copyDoc.XP[guildID] = guildCopy
	}
	return copyDoc
}

// saveLocked rewrites the whole document. A write failure is logged and
// the in-memory state stays authoritative.
func (s *Store) saveLocked() {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		s.logger.Error("data marshal failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("data save failed", zap.String("path", s.path), zap.Error(err))
	}
}
