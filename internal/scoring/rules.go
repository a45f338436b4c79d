package scoring

// PointsToWin is the minimum score a side needs to take a set.
const PointsToWin = 11

// WinMargin is the lead required to close a set (deuce rule).
const WinMargin = 2

// SetEnds reports whether a set with scores a and b is over:
// someone reached 11 and leads by at least 2. There is no upper bound.
func SetEnds(a, b int) bool {
	if a < PointsToWin && b < PointsToWin {
		return false
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d >= WinMargin
}

// ServingSide derives the serve indicator: two serves per side,
// starting with Side1.
func ServingSide(p1Score, p2Score int) Side {
	if (p1Score+p2Score)%4 < 2 {
		return Side1
	}
	return Side2
}
