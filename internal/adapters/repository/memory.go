package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
)

type ratingKey struct {
	account string
	mode    model.Mode
}

// MemoryStore is a Store held entirely in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*model.Match
	byKey   map[string]string
	ratings map[ratingKey]model.Rating
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*model.Match),
		byKey:   make(map[string]string),
		ratings: make(map[ratingKey]model.Rating),
	}
}

// copyMatch returns a shallow copy; stored slices are never mutated in place.
func copyMatch(m *model.Match) *model.Match {
	out := *m
	return &out
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	key := m.Key().String()
	if _, ok := s.byKey[key]; ok {
		return ErrDuplicateMatch
	}
	if _, ok := s.matches[m.ID]; ok {
		return ErrDuplicateMatch
	}
	s.matches[m.ID] = copyMatch(m)
	s.byKey[key] = m.ID
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (s *MemoryStore) FindMatchByKey(ctx context.Context, key model.MatchKey) (*model.Match, error) {
	s.mu.RLock()
	id, ok := s.byKey[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMatchNotFound
	}
	return s.GetMatch(ctx, id)
}

func (s *MemoryStore) ListMatches(_ context.Context, after rating.Cursor, limit int) ([]*model.Match, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var page []*model.Match
	for _, m := range s.matches {
		if after.After(m) {
			page = append(page, m)
		}
	}
	sort.Slice(page, func(i, j int) bool {
		if !page[i].StartTime.Equal(page[j].StartTime) {
			return page[i].StartTime.Before(page[j].StartTime)
		}
		return page[i].ID < page[j].ID
	})
	if len(page) > limit {
		page = page[:limit]
	}
	out := make([]*model.Match, len(page))
	for i, m := range page {
		out[i] = copyMatch(m)
	}
	return out, nil
}

func (s *MemoryStore) UpdateRatingSnapshots(_ context.Context, matchID string, snaps []model.RatingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	updated := copyMatch(m)
	updated.Snapshots = append([]model.RatingSnapshot(nil), snaps...)
	s.matches[matchID] = updated
	return nil
}

func (s *MemoryStore) CountMatches(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches), nil
}

func (s *MemoryStore) GetRating(_ context.Context, accountID string, mode model.Mode) (model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[ratingKey{accountID, mode}]
	if !ok {
		return model.Rating{}, rating.ErrRatingNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) PutRatings(_ context.Context, ratings []model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range ratings {
		s.ratings[ratingKey{r.AccountID, r.Mode}] = r.Clone()
	}
	return nil
}

func (s *MemoryStore) ResetRatings(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = make(map[ratingKey]model.Rating)
	return nil
}

// ListRatings returns every rating in mode ordered by account id.
func (s *MemoryStore) ListRatings(_ context.Context, mode model.Mode) ([]model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Rating
	for k, r := range s.ratings {
		if k.mode == mode {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
