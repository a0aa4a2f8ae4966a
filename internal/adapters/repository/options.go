package repository

// Option applies a configuration option to the TreapLeaderboard.
type Option func(*TreapLeaderboard)

// WithMinMatches hides accounts with fewer rated matches.
func WithMinMatches(n int) Option {
	return func(l *TreapLeaderboard) {
		if n >= 0 {
			l.minMatches = n
		}
	}
}
