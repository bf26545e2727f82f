// Package history persists finished matches to Postgres. It is optional:
// without a DSN the server simply keeps no record beyond the session.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/duelarena/backend/internal/session"
)

// Match is one archived match result.
type Match struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionCode string    `gorm:"index" json:"sessionCode"`
	Winner      string    `json:"winner"`
	Reason      string    `json:"reason"`
	ScoreA      int       `json:"scoreA"`
	ScoreB      int       `json:"scoreB"`
	Rounds      int       `json:"rounds"`
	EndedAt     time.Time `json:"endedAt"`
	CreatedAt   time.Time `json:"-"`
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects and migrates the schema.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Match{}); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// RecordMatch implements session.Recorder. Failures are logged, not
// propagated: archiving must never take a live session down.
func (s *Store) RecordMatch(sum session.Summary) {
	m := FromSummary(sum)
	if err := s.db.Create(&m).Error; err != nil {
		s.log.Error("failed to archive match",
			zap.String("session", sum.Code),
			zap.Error(err))
		return
	}
	s.log.Info("match archived",
		zap.String("session", sum.Code),
		zap.String("winner", sum.Winner),
		zap.Int("rounds", sum.Rounds))
}

// Recent returns the newest archived matches.
func (s *Store) Recent(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []Match
	err := s.db.WithContext(ctx).
		Order("ended_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FromSummary maps a session summary onto a storable row.
func FromSummary(sum session.Summary) Match {
	return Match{
		ID:          uuid.New(),
		SessionCode: sum.Code,
		Winner:      sum.Winner,
		Reason:      sum.Reason,
		ScoreA:      sum.ScoreA,
		ScoreB:      sum.ScoreB,
		Rounds:      sum.Rounds,
		EndedAt:     sum.EndedAt,
	}
}
