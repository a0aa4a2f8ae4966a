package loggen

import (
	"fmt"

	"github.com/okian/lasertrack/internal/adapters/repository"
)

// verifyLeaderboard checks that the top rows are ordered by ordinal, carry
// competition ranks (ties share a rank, the next row skips ahead) and agree
// with the per-account rank lookups of the generated roster.
func verifyLeaderboard(top []repository.Entry, ranks map[string]repository.Entry) error {
	for i, e := range top {
		want := i + 1
		if i > 0 && e.Ordinal == top[i-1].Ordinal {
			want = top[i-1].Rank
		}
		if e.Rank != want {
			return fmt.Errorf("%w: row %d has rank %d, want %d", ErrVerification, i, e.Rank, want)
		}
		if i > 0 && e.Ordinal > top[i-1].Ordinal {
			return fmt.Errorf("%w: %s (%.3f) above %s (%.3f)",
				ErrVerification, top[i-1].AccountID, top[i-1].Ordinal, e.AccountID, e.Ordinal)
		}
		r, ok := ranks[e.AccountID]
		if !ok {
			continue // not a generated account
		}
		if r.Rank != e.Rank || r.Ordinal != e.Ordinal {
			return fmt.Errorf("%w: %s is rank %d on the leaderboard, %d by lookup",
				ErrVerification, e.AccountID, e.Rank, r.Rank)
		}
	}
	return nil
}

// expectedRanked returns the accounts that should hold a rating after the
// matches were imported: every non-guest of a match with two playing teams.
func expectedRanked(matches []Match) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range matches {
		playing := 0
		for _, team := range m.Teams {
			if len(team) > 0 {
				playing++
			}
		}
		if playing < 2 {
			continue
		}
		for _, team := range m.Teams {
			for _, id := range team {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
