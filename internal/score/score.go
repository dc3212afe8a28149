// Package score implements the per-cell stroke counting rules shared by
// local edits and remote full-state updates.
package score

import (
	"strconv"
	"strings"
)

// Increment records one stroke. The first stroke on an unplayed cell jumps
// straight to par, covering the common "I shot par and forgot to tally each
// throw" case. When par is unset or not a positive integer the cell simply
// counts up by one.
func Increment(current int, par string) int {
	if current == 0 {
		if p, err := strconv.Atoi(strings.TrimSpace(par)); err == nil && p > 0 {
			return p
		}
	}
	return current + 1
}

// Decrement removes one stroke. An unplayed cell stays at the sentinel; the
// score never goes negative.
func Decrement(current int) int {
	if current <= 0 {
		return 0
	}
	return current - 1
}
