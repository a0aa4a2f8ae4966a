// Package repository holds match, rating and leaderboard storage.
package repository

import (
	"context"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank      int     `json:"rank"`
	AccountID string  `json:"account_id"`
	Ordinal   float64 `json:"ordinal"`
	Mu        float64 `json:"mu"`
	Sigma     float64 `json:"sigma"`
	Matches   int     `json:"matches"`
}

// MatchStore persists imported matches.
type MatchStore interface {
	// CreateMatch stores m. Returns ErrDuplicateMatch when a match with the
	// same key exists.
	CreateMatch(ctx context.Context, m *model.Match) error
	// GetMatch returns ErrMatchNotFound for unknown ids.
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	// FindMatchByKey returns ErrMatchNotFound when no match has key.
	FindMatchByKey(ctx context.Context, key model.MatchKey) (*model.Match, error)
	// ListMatches pages every match, ranked or not, in (StartTime, ID) order.
	ListMatches(ctx context.Context, after rating.Cursor, limit int) ([]*model.Match, error)
	UpdateRatingSnapshots(ctx context.Context, matchID string, snaps []model.RatingSnapshot) error
	CountMatches(ctx context.Context) (int, error)
}

// RatingStore persists ratings.
type RatingStore interface {
	rating.Store
	ListRatings(ctx context.Context, mode model.Mode) ([]model.Rating, error)
}

// Store is the full persistence surface.
type Store interface {
	MatchStore
	RatingStore
	Close() error
}

// Leaderboard ranks accounts by ordinal within each mode.
type Leaderboard interface {
	// Upsert places r at its current ordinal, replacing any previous entry.
	Upsert(ctx context.Context, r model.Rating) error
	// Rank returns ErrNotFound if the account is not ranked in mode.
	Rank(ctx context.Context, mode model.Mode, accountID string) (Entry, error)
	TopN(ctx context.Context, mode model.Mode, n int) ([]Entry, error)
	Count(ctx context.Context, mode model.Mode) int
	Reset(ctx context.Context)
}
