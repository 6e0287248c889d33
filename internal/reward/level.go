// Package reward owns a user's progression: xp, levels, coins, streaks,
// badges and bonus payouts.
package reward

// Level returns floor(sqrt(xp/100)) + 1. Negative xp counts as 0.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return isqrt(xp/100) + 1
}

// NextLevelXP returns the xp at which level ends: level² × 100.
func NextLevelXP(level int) int {
	return level * level * 100
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	if n < 2 {
		return n
	}
	// Newton's method from above.
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
