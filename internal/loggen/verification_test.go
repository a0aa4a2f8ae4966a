package loggen

import (
	"errors"
	"testing"

	"github.com/okian/lasertrack/internal/adapters/repository"
)

func TestVerifyLeaderboard(t *testing.T) {
	top := []repository.Entry{
		{Rank: 1, AccountID: "acc-0001", Ordinal: 12},
		{Rank: 2, AccountID: "acc-0002", Ordinal: 9},
		{Rank: 2, AccountID: "acc-0003", Ordinal: 9},
		{Rank: 4, AccountID: "acc-0004", Ordinal: 3},
	}
	ranks := map[string]repository.Entry{
		"acc-0002": top[1],
		"acc-0004": top[3],
	}
	if err := verifyLeaderboard(top, ranks); err != nil {
		t.Fatalf("tied ranks rejected: %v", err)
	}

	gap := append([]repository.Entry(nil), top...)
	gap[3].Rank = 3
	if err := verifyLeaderboard(gap, nil); !errors.Is(err, ErrVerification) {
		t.Fatalf("dense rank after a tie accepted: %v", err)
	}

	disagree := map[string]repository.Entry{"acc-0001": {Rank: 2, Ordinal: 12}}
	if err := verifyLeaderboard(top, disagree); !errors.Is(err, ErrVerification) {
		t.Fatalf("lookup mismatch accepted: %v", err)
	}
}

func TestExpectedRanked(t *testing.T) {
	matches := []Match{
		{Teams: [][]string{{"acc-0001"}, {"acc-0002"}}},
		{Teams: [][]string{{"acc-0003"}, {}}},
	}
	got := expectedRanked(matches)
	if len(got) != 2 {
		t.Fatalf("want 2 ranked accounts, got %d", len(got))
	}
	if _, ok := got["acc-0003"]; ok {
		t.Fatal("one-sided match should not rank its players")
	}
}
