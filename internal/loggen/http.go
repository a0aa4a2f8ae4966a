package loggen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/lasertrack/internal/domain/types"
	"github.com/okian/lasertrack/pkg/logger"
)

// HTTPClient talks to a running service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(cfg *Config) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: cfg.Timeout}, baseURL: cfg.BaseURL}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.client.Do(req)
}

// getJSON fetches path into v. Any status other than 200 is an error.
func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if v == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// postLog uploads one raw log to POST /matches.
func (c *HTTPClient) postLog(ctx context.Context, m Match) (types.ImportAck, error) {
	q := url.Values{"source": {"loggen:" + m.FileName()}, "mode": {m.Mode.String()}}
	resp, err := c.do(ctx, http.MethodPost, "/matches?"+q.Encode(), bytes.NewReader(m.Raw))
	if err != nil {
		return types.ImportAck{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ImportAck{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return types.ImportAck{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var ack types.ImportAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return types.ImportAck{}, fmt.Errorf("parse ack: %w", err)
	}
	return ack, nil
}

// submitMatches uploads every match with cfg.Workers concurrent requests.
// Individual failures are counted, not returned.
func submitMatches(ctx context.Context, cfg *Config, client *HTTPClient, matches []Match, stats *Stats) error {
	log := logger.GetOrNop()
	log.Info(ctx, "submitting matches", logger.Int("matches", len(matches)), logger.Int("workers", cfg.Workers))

	var submitted, accepted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for _, m := range matches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			submitted.Add(1)
			ack, err := client.postLog(gctx, m)
			if err != nil {
				failed.Add(1)
				log.Warn(gctx, "match submission failed", logger.Int("index", m.Index), logger.Error(err))
				return nil
			}
			accepted.Add(1)
			if cfg.Verbose {
				log.Debug(gctx, "match accepted", logger.Int("index", m.Index), logger.String("job", ack.JobID))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.MatchesSubmitted = int(submitted.Load())
	stats.MatchesAccepted = int(accepted.Load())
	stats.MatchesFailed = int(failed.Load())
	log.Info(ctx, "match submission completed",
		logger.Int("accepted", stats.MatchesAccepted),
		logger.Int("failed", stats.MatchesFailed))
	if err != nil {
		return fmt.Errorf("submission cancelled: %w", err)
	}
	return nil
}
