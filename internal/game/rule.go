package game

// Scoring rule: first to WinningScore with a lead of at least WinningMargin.
const (
	WinningScore  = 11
	WinningMargin = 2
)

// Winner applies the win-by-two rule to a pair of scores.
// It returns 1 or 2 for the winning slot, or 0 while the match is still open.
func Winner(score1, score2 int) int {
	if score1 >= WinningScore && score1-score2 >= WinningMargin {
		return 1
	}
	if score2 >= WinningScore && score2-score1 >= WinningMargin {
		return 2
	}
	return 0
}
