package task

import (
	"sort"
	"strings"
)

// bucket is one of the three mutually exclusive groups a task renders in.
type bucket int

const (
	bucketActive bucket = iota
	bucketPending
	bucketConfirmed
)

func bucketOf(t *Task) bucket {
	switch {
	case t.Confirmed:
		return bucketConfirmed
	case t.ResultSubmitted:
		return bucketPending
	default:
		return bucketActive
	}
}

// compareByDeadline orders two tasks by deadline key with invalid keys last
// and a lexicographic id tie-break. asc flips only the valid-vs-valid case,
// so invalid entries stay at the tail regardless of direction.
func compareByDeadline(a, b *Task, asc bool) int {
	ak, aValid := DeadlineKey(a.Deadline)
	bk, bValid := DeadlineKey(b.Deadline)
	switch {
	case !aValid && !bValid:
		return strings.Compare(a.ID, b.ID)
	case !aValid:
		return 1
	case !bValid:
		return -1
	}
	if ak != bk {
		if asc == (ak < bk) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// GroupAndSort renders a task list in its canonical view order:
// active tasks first, then pending (submitted but unconfirmed), then
// confirmed. The ascending flag applies to the active bucket only; pending
// and confirmed always read earliest to latest so finished work does not
// reshuffle when the user flips the toggle. The input is not modified.
func GroupAndSort(tasks []*Task, ascending bool) []*Task {
	var active, pending, confirmed []*Task
	for _, t := range tasks {
		switch bucketOf(t) {
		case bucketConfirmed:
			confirmed = append(confirmed, t)
		case bucketPending:
			pending = append(pending, t)
		default:
			active = append(active, t)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return compareByDeadline(active[i], active[j], ascending) < 0
	})
	sort.SliceStable(pending, func(i, j int) bool {
		return compareByDeadline(pending[i], pending[j], true) < 0
	})
	sort.SliceStable(confirmed, func(i, j int) bool {
		return compareByDeadline(confirmed[i], confirmed[j], true) < 0
	})

	out := make([]*Task, 0, len(tasks))
	out = append(out, active...)
	out = append(out, pending...)
	out = append(out, confirmed...)
	return out
}
