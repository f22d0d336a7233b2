// Package store implements the local progress mirror: a best-effort
// key-value persistence layer over an embedded SQLite database. It exists so
// a page reload or agent restart resumes close to where the exam left off.
// Persistence is advisory: every failure is logged and swallowed, never
// surfaced to the session machine.
package store

import (
	"encoding/json"
	"strconv"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known progress keys. All three are cleared together at termination.
const (
	KeyWarnings      = "quiz_warnings"
	KeyTimeRemaining = "quiz_time_remaining"
	KeyAnswers       = "quiz_answers"
)

// Credential keys written by cmd/login and read at session initialization.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserName     = "user_name"
)

// Entry is a single persisted key-value pair.
type Entry struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

// TableName pins the table name regardless of gorm's pluralization.
func (Entry) TableName() string { return "progress_entries" }

// Store is the key-value progress mirror.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the SQLite file at path and migrates the
// schema. This is the only operation that returns an error: without a
// working store file the agent cannot honor its resume contract.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Save upserts a raw string value. Failures are logged, never returned.
func (s *Store) Save(key, value string) {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Entry{Key: key, Value: value}).Error
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not save progress entry")
	}
}

// SaveInt persists an integer as its decimal string.
func (s *Store) SaveInt(key string, n int) {
	s.Save(key, strconv.Itoa(n))
}

// SaveJSON serializes v and persists it under key.
func (s *Store) SaveJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not serialize progress entry")
		return
	}
	s.Save(key, string(data))
}

// Load returns the raw value for key, or ok=false when absent or on any
// read error. Read failures are treated as "no prior state".
func (s *Store) Load(key string) (string, bool) {
	var e Entry
	err := s.db.First(&e, "key = ?", key).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.log.Warn().Err(err).Str("key", key).Msg("Could not load progress entry")
		}
		return "", false
	}
	return e.Value, true
}

// LoadInt parses the stored value as an integer; a missing key or a value
// that does not parse is absent.
func (s *Store) LoadInt(key string) (int, bool) {
	raw, ok := s.Load(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", raw).Msg("Discarding non-integer progress entry")
		return 0, false
	}
	return n, true
}

// LoadJSON unmarshals the stored value into dst. Parse failures are
// swallowed and reported as absent.
func (s *Store) LoadJSON(key string, dst any) bool {
	raw, ok := s.Load(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed progress entry")
		return false
	}
	return true
}

// Clear removes the enumerated keys. Invoked at session termination.
func (s *Store) Clear(keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.db.Delete(&Entry{}, "key IN ?", keys).Error; err != nil {
		s.log.Error().Err(err).Strs("keys", keys).Msg("Could not clear progress entries")
	}
}
