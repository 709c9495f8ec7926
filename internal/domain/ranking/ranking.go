// Package ranking orders scored items into a dense leaderboard.
package ranking

import "sort"

// Ranked pairs an item with its 1-based position.
type Ranked[T any] struct {
	Item   T
	Points int
	Rank   int
}

// Rank sorts items by points descending and numbers them 1..N.
// Ties keep their input order and still receive distinct ranks.
// The input slice is left untouched.
func Rank[T any](items []T, points func(T) int) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		out[i] = Ranked[T]{Item: it, Points: points(it)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
