package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/metrics"
)

// Treap-based, in-memory Leaderboard.
//
// Ordering: ordinal DESC, then account id ASC. "less" means ranks earlier,
// so an in-order walk yields the board from best to worst. Node priorities
// come from a hash of the account id, which keeps the shape independent of
// insertion order.

// ordinalScale is the fixed-point scale for ordinals.
const ordinalScale = 1_000_000_000

type ordinalFP int64

func toFixedPoint(x float64) ordinalFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*ordinalScale >= float64(math.MaxInt64):
		return ordinalFP(math.MaxInt64)
	case x*ordinalScale <= float64(math.MinInt64):
		return ordinalFP(math.MinInt64)
	}
	return ordinalFP(math.Round(x * ordinalScale))
}

func toFloat(x ordinalFP) float64 { return float64(x) / ordinalScale }

type node struct {
	id      string
	ordinal ordinalFP
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aOrd ordinalFP, aID string, bOrd ordinalFP, bID string) bool {
	if aOrd != bOrd {
		return aOrd > bOrd
	}
	return aID < bID
}

func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, ord ordinalFP) *node {
	if n == nil {
		return &node{id: id, ordinal: ord, prio: priority(id), size: 1}
	}
	if less(ord, id, n.ordinal, n.id) {
		n.left = insert(n.left, id, ord)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, ord)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, ord ordinalFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case ord == n.ordinal && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, ord)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, ord)
		}
	case less(ord, id, n.ordinal, n.id):
		n.left = deleteNode(n.left, id, ord)
	default:
		n.right = deleteNode(n.right, id, ord)
	}
	fix(n)
	return n
}

// countAbove returns the number of nodes with an ordinal strictly greater
// than ord.
func countAbove(n *node, ord ordinalFP) int {
	count := 0
	for n != nil {
		if n.ordinal > ord {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type record struct {
	ordinal ordinalFP
	rating  model.Distribution
	matches int
}

type board struct {
	root *node
	byID map[string]record
}

// TreapLeaderboard keeps one treap per mode.
type TreapLeaderboard struct {
	mu         sync.RWMutex
	boards     map[model.Mode]*board
	minMatches int
}

// NewTreapLeaderboard constructs an empty leaderboard.
func NewTreapLeaderboard(opts ...Option) *TreapLeaderboard {
	l := &TreapLeaderboard{boards: make(map[model.Mode]*board)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *TreapLeaderboard) board(mode model.Mode) *board {
	b, ok := l.boards[mode]
	if !ok {
		b = &board{byID: make(map[string]record)}
		l.boards[mode] = b
	}
	return b
}

// Upsert implements Leaderboard.Upsert in O(log n) expected time.
func (l *TreapLeaderboard) Upsert(_ context.Context, r model.Rating) error {
	ord := toFixedPoint(r.General.Ordinal())

	l.mu.Lock()
	b := l.board(r.Mode)
	if old, ok := b.byID[r.AccountID]; ok {
		b.root = deleteNode(b.root, r.AccountID, old.ordinal)
		delete(b.byID, r.AccountID)
	}
	if r.Matches >= l.minMatches {
		b.byID[r.AccountID] = record{ordinal: ord, rating: r.General, matches: r.Matches}
		b.root = insert(b.root, r.AccountID, ord)
	}
	count := len(b.byID)
	l.mu.Unlock()

	metrics.UpdateLeaderboardAccounts(r.Mode.String(), count)
	return nil
}

// Rank returns the competition rank of an account: one plus the number of
// accounts with a strictly higher ordinal.
func (l *TreapLeaderboard) Rank(_ context.Context, mode model.Mode, accountID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.boards[mode]
	if !ok {
		return Entry{}, ErrNotFound
	}
	rec, ok := b.byID[accountID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry(accountID, rec, countAbove(b.root, rec.ordinal)+1), nil
}

// TopN returns the best n accounts. Equal ordinals share a rank.
func (l *TreapLeaderboard) TopN(_ context.Context, mode model.Mode, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.boards[mode]
	if !ok {
		return []Entry{}, nil
	}
	nodes := make([]*node, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		rank := i + 1
		if i > 0 && nd.ordinal == nodes[i-1].ordinal {
			rank = out[i-1].Rank
		}
		out[i] = entry(nd.id, b.byID[nd.id], rank)
	}
	return out, nil
}

// Count returns the number of ranked accounts in mode.
func (l *TreapLeaderboard) Count(_ context.Context, mode model.Mode) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.boards[mode]; ok {
		return len(b.byID)
	}
	return 0
}

// Reset drops every board.
func (l *TreapLeaderboard) Reset(_ context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for mode := range l.boards {
		metrics.UpdateLeaderboardAccounts(mode.String(), 0)
	}
	l.boards = make(map[model.Mode]*board)
}

func entry(id string, rec record, rank int) Entry {
	return Entry{
		Rank:      rank,
		AccountID: id,
		Ordinal:   toFloat(rec.ordinal),
		Mu:        rec.rating.Mu,
		Sigma:     rec.rating.Sigma,
		Matches:   rec.matches,
	}
}
