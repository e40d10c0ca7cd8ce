package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func active(id, deadline string) *Task {
	return &Task{ID: id, Deadline: deadline}
}

func ids(tasks []*Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestGroupAndSortActiveToggle(t *testing.T) {
	t1 := active("T1", "2025-12-29")
	t2 := active("T2", "2025-12-25")

	asc := GroupAndSort([]*Task{t1, t2}, true)
	assert.Equal(t, []string{"T2", "T1"}, ids(asc))

	desc := GroupAndSort([]*Task{t1, t2}, false)
	assert.Equal(t, []string{"T1", "T2"}, ids(desc))
}

func TestGroupAndSortInvalidDeadlineAlwaysLast(t *testing.T) {
	t1 := active("T1", "2025-12-29")
	t2 := active("T2", "2025-12-25")
	t3 := active("T3", "bad")

	asc := GroupAndSort([]*Task{t3, t1, t2}, true)
	assert.Equal(t, []string{"T2", "T1", "T3"}, ids(asc))

	desc := GroupAndSort([]*Task{t3, t1, t2}, false)
	assert.Equal(t, []string{"T1", "T2", "T3"}, ids(desc))
}

func TestGroupAndSortBucketShape(t *testing.T) {
	tasks := []*Task{
		{ID: "c1", Deadline: "2025-01-01", Confirmed: true, ResultSubmitted: true},
		{ID: "a1", Deadline: "2025-06-01"},
		{ID: "p1", Deadline: "2025-01-02", ResultSubmitted: true},
		{ID: "a2", Deadline: "2025-02-01"},
		{ID: "c2", Deadline: "2024-01-01", Confirmed: true, ResultSubmitted: true},
		{ID: "p2", Deadline: "2024-06-01", ResultSubmitted: true},
	}

	// Confirmed and pending sit after every active task even with earlier
	// deadlines, and both keep ascending order regardless of the flag.
	for _, ascending := range []bool{true, false} {
		got := ids(GroupAndSort(tasks, ascending))
		require.Len(t, got, 6)
		assert.Equal(t, []string{"p2", "p1"}, got[2:4])
		assert.Equal(t, []string{"c2", "c1"}, got[4:6])
		if ascending {
			assert.Equal(t, []string{"a2", "a1"}, got[0:2])
		} else {
			assert.Equal(t, []string{"a1", "a2"}, got[0:2])
		}
	}
}

func TestGroupAndSortTieBreakByID(t *testing.T) {
	a := active("T9", "2025-12-25")
	b := active("T1", "2025-12-25")

	for _, ascending := range []bool{true, false} {
		got := GroupAndSort([]*Task{a, b}, ascending)
		assert.Equal(t, []string{"T1", "T9"}, ids(got), "ascending=%v", ascending)
	}

	// Both invalid: still deterministic by id.
	x := active("Z", "nope")
	y := active("A", "also-nope")
	got := GroupAndSort([]*Task{x, y}, false)
	assert.Equal(t, []string{"A", "Z"}, ids(got))
}

func TestGroupAndSortIdempotent(t *testing.T) {
	tasks := []*Task{
		active("T3", "bad"),
		active("T1", "2025-12-29"),
		{ID: "P1", Deadline: "2025-05-05", ResultSubmitted: true},
		active("T2", "2025-12-25"),
		{ID: "C1", Deadline: "2025-03-03", Confirmed: true, ResultSubmitted: true},
	}
	once := GroupAndSort(tasks, true)
	twice := GroupAndSort(once, true)
	assert.Equal(t, ids(once), ids(twice))
}

func TestGroupAndSortDoesNotMutateInput(t *testing.T) {
	in := []*Task{active("B", "2025-02-02"), active("A", "2025-01-01")}
	_ = GroupAndSort(in, true)
	assert.Equal(t, []string{"B", "A"}, ids(in))
}
