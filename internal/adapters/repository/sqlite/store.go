// Package sqlite provides SQLite-backed match and rating storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/pkg/logger"
)

// Store implements repository.Store on a single SQLite file.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens the database at path in WAL mode and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, logger: logger.GetOrNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.logger.Info(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CreateMatch(ctx context.Context, m *model.Match) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	var snaps []byte
	if len(m.Snapshots) > 0 {
		if snaps, err = json.Marshal(m.Snapshots); err != nil {
			return fmt.Errorf("encode snapshots %s: %w", m.ID, err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO matches (
	id, arena, start_unix, start_ns, mode, ranked, winner, imported_at, body, snapshots
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		m.ID,
		m.Arena,
		m.StartTime.Unix(),
		startNanos(m.StartTime),
		m.Mode.String(),
		m.Ranked,
		m.Winner,
		m.ImportedAt.UTC().UnixMilli(),
		body,
		snaps,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateMatch, m.Key())
		}
		return fmt.Errorf("insert match %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body, snapshots FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

func (s *Store) FindMatchByKey(ctx context.Context, key model.MatchKey) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body, snapshots FROM matches WHERE arena = ? AND start_unix = ?`,
		key.Arena, key.StartTime.Unix())
	return scanMatch(row)
}

func (s *Store) ListMatches(ctx context.Context, after rating.Cursor, limit int) ([]*model.Match, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	ns := int64(math.MinInt64)
	if !after.StartTime.IsZero() {
		ns = startNanos(after.StartTime)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT body, snapshots
FROM matches
WHERE start_ns > ? OR (start_ns = ? AND id > ?)
ORDER BY start_ns ASC, id ASC
LIMIT ?
`, ns, ns, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Match, 0, limit)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateRatingSnapshots(ctx context.Context, matchID string, snaps []model.RatingSnapshot) error {
	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode snapshots %s: %w", matchID, err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET snapshots = ? WHERE id = ?`, data, matchID)
	if err != nil {
		return fmt.Errorf("update snapshots %s: %w", matchID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrMatchNotFound
	}
	return nil
}

func (s *Store) CountMatches(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

func (s *Store) GetRating(ctx context.Context, accountID string, mode model.Mode) (model.Rating, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT account_id, mode, mu, sigma, roles, matches, updated_at
FROM ratings WHERE account_id = ? AND mode = ?
`, accountID, mode.String())
	r, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rating{}, rating.ErrRatingNotFound
	}
	return r, err
}

// PutRatings upserts all ratings in one transaction.
func (s *Store) PutRatings(ctx context.Context, ratings []model.Rating) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put ratings: %w", err)
	}
	for _, r := range ratings {
		roles, err := json.Marshal(r.Roles)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode roles for %s: %w", r.AccountID, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ratings (account_id, mode, mu, sigma, roles, matches, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id, mode) DO UPDATE SET
	mu = excluded.mu,
	sigma = excluded.sigma,
	roles = excluded.roles,
	matches = excluded.matches,
	updated_at = excluded.updated_at
`,
			r.AccountID,
			r.Mode.String(),
			r.General.Mu,
			r.General.Sigma,
			string(roles),
			r.Matches,
			r.UpdatedAt.UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert rating %s: %w", r.AccountID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put ratings: %w", err)
	}
	return nil
}

func (s *Store) ResetRatings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ratings`); err != nil {
		return fmt.Errorf("reset ratings: %w", err)
	}
	return nil
}

func (s *Store) ListRatings(ctx context.Context, mode model.Mode) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT account_id, mode, mu, sigma, roles, matches, updated_at
FROM ratings WHERE mode = ? ORDER BY account_id
`, mode.String())
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*model.Match, error) {
	var body, snaps []byte
	if err := row.Scan(&body, &snaps); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrMatchNotFound
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}
	var m model.Match
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	m.Snapshots = nil
	if len(snaps) > 0 {
		if err := json.Unmarshal(snaps, &m.Snapshots); err != nil {
			return nil, fmt.Errorf("decode snapshots %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func scanRating(row scanner) (model.Rating, error) {
	var (
		r       model.Rating
		mode    string
		roles   string
		updated int64
	)
	if err := row.Scan(&r.AccountID, &mode, &r.General.Mu, &r.General.Sigma, &roles, &r.Matches, &updated); err != nil {
		return model.Rating{}, err
	}
	m, err := model.ParseMode(mode)
	if err != nil {
		return model.Rating{}, err
	}
	r.Mode = m
	if roles != "" && roles != "null" {
		if err := json.Unmarshal([]byte(roles), &r.Roles); err != nil {
			return model.Rating{}, fmt.Errorf("decode roles for %s: %w", r.AccountID, err)
		}
	}
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return r, nil
}

func startNanos(t time.Time) int64 { return t.UTC().UnixNano() }
