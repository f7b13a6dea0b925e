package main

import "sort"

// ScoreEntry is one contestant's bookkeeping record. Entries are kept
// for every contestant that has ever joined the room; leaving does not
// remove one.
type ScoreEntry struct {
	Identity string
	Name     string
	Score    int
}

// RankEntry is one row of the final ranking.
type RankEntry struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Winner bool   `json:"winner"`
}

// Scoreboard maps contestant identity to score, in join order. It is
// pure bookkeeping, mutated only under the owning hub's single-writer
// discipline.
type Scoreboard struct {
	order   []string
	entries map[string]*ScoreEntry
}

func newScoreboard() *Scoreboard {
	return &Scoreboard{
		entries: make(map[string]*ScoreEntry),
	}
}

// Ensure registers a contestant at score 0, or refreshes the display
// name of a returning one. Reports whether the identity was new.
func (b *Scoreboard) Ensure(identity, name string) bool {
	if e, ok := b.entries[identity]; ok {
		e.Name = name
		return false
	}

	b.entries[identity] = &ScoreEntry{Identity: identity, Name: name}
	b.order = append(b.order, identity)

	return true
}

// Score returns the current score for an identity, or 0 if unknown.
func (b *Scoreboard) Score(identity string) int {
	if e, ok := b.entries[identity]; ok {
		return e.Score
	}
	return 0
}

// Award adds delta to an identity's score. Unknown identities are
// ignored rather than invented.
func (b *Scoreboard) Award(identity string, delta int) {
	if e, ok := b.entries[identity]; ok {
		e.Score += delta
	}
}

// Len returns the number of contestants ever registered.
func (b *Scoreboard) Len() int {
	return len(b.order)
}

// Snapshot returns all entries in join order.
func (b *Scoreboard) Snapshot() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.entries[id])
	}
	return out
}

// Ranking sorts by descending score, with join order as the stable
// tie-break. Every entry sharing the maximum score carries the winner
// marker, unless the maximum is zero. A board that never had any
// contestants yields empty=true instead of a ranking.
func (b *Scoreboard) Ranking() (ranking []RankEntry, empty bool) {
	if len(b.order) == 0 {
		return nil, true
	}

	entries := b.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	max := entries[0].Score
	ranking = make([]RankEntry, 0, len(entries))
	for _, e := range entries {
		ranking = append(ranking, RankEntry{
			Name:   e.Name,
			Score:  e.Score,
			Winner: max > 0 && e.Score == max,
		})
	}

	return ranking, false
}
