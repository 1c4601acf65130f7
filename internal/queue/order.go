package queue

import "github.com/austinkregel/rune-musicd/internal/engine"

// OrderAdapter adapts a Manager's shuffle/repeat state to
// engine.OrderProvider, so the Engine's Next/Previous commands walk a
// shuffled or repeating order without the Manager duplicating the
// Engine's ownership of the playlist itself (the single-owner
// invariant). The Manager's own items/index bookkeeping goes unused in
// this role; only shuffle, shuffleOrder and repeat matter here.
type OrderAdapter struct {
	mgr *Manager
}

// NewOrderAdapter wraps mgr as an engine.OrderProvider.
func NewOrderAdapter(mgr *Manager) *OrderAdapter {
	return &OrderAdapter{mgr: mgr}
}

func (a *OrderAdapter) Next(playlist engine.Playlist, index int) (int, bool) {
	return a.step(playlist, index, 1)
}

func (a *OrderAdapter) Previous(playlist engine.Playlist, index int) (int, bool) {
	return a.step(playlist, index, -1)
}

func (a *OrderAdapter) step(playlist engine.Playlist, index int, dir int) (int, bool) {
	m := a.mgr
	n := len(playlist)
	if n == 0 {
		return 0, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repeat == RepeatOne {
		return index, true
	}

	if m.shuffle {
		if len(m.shuffleOrder) != n {
			m.shuffleOrder = shuffledIndices(n, m.rng)
		}
		pos := positionOf(m.shuffleOrder, index)
		if pos < 0 {
			pos = 0
		}
		pos += dir
		if pos < 0 || pos >= n {
			if m.repeat != RepeatAll {
				return 0, false
			}
			m.shuffleOrder = shuffledIndices(n, m.rng)
			if dir > 0 {
				pos = 0
			} else {
				pos = n - 1
			}
		}
		return m.shuffleOrder[pos], true
	}

	next := index + dir
	if next < 0 || next >= n {
		if m.repeat != RepeatAll {
			return 0, false
		}
		if dir > 0 {
			return 0, true
		}
		return n - 1, true
	}
	return next, true
}

func shuffledIndices(n int, rng interface{ Intn(int) int }) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func positionOf(order []int, idx int) int {
	for pos, v := range order {
		if v == idx {
			return pos
		}
	}
	return -1
}
