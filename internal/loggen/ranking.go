package loggen

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
)

// getLeaderboard fetches the top cfg.TopN rows of mode.
func getLeaderboard(ctx context.Context, cfg *Config, client *HTTPClient, mode model.Mode) ([]repository.Entry, error) {
	q := url.Values{"mode": {mode.String()}, "limit": {strconv.Itoa(cfg.TopN)}}
	var entries []repository.Entry
	if _, err := client.getJSON(ctx, "/leaderboard?"+q.Encode(), &entries); err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", mode, err)
	}
	return entries, nil
}

// retrieveRankings looks up every account of the roster in mode. Accounts
// without a ranked match are skipped.
func retrieveRankings(ctx context.Context, cfg *Config, client *HTTPClient, mode model.Mode, roster []Player) (map[string]repository.Entry, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]repository.Entry, len(roster))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for _, p := range roster {
		g.Go(func() error {
			var e repository.Entry
			path := "/rank/" + url.PathEscape(p.AccountID) + "?mode=" + mode.String()
			status, err := client.getJSON(gctx, path, &e)
			switch {
			case status == http.StatusNotFound:
				return nil
			case err != nil:
				return fmt.Errorf("rank %s: %w", p.AccountID, err)
			}
			mu.Lock()
			out[p.AccountID] = e
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.GetOrNop().Info(ctx, "rankings retrieved", logger.String("mode", mode.String()), logger.Int("ranked", len(out)))
	return out, nil
}
