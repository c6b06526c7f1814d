package approval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"PostPilot/internal/domain"
)

func TestTableDecideOnlyOnce(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	tbl.add("id-1", domain.Item{ID: "a"})

	require.Equal(t, decisionResolved, tbl.decide("id-1", domain.OutcomeApproved))
	require.Equal(t, decisionUnknown, tbl.decide("id-1", domain.OutcomeRejected))
	require.Equal(t, decisionUnknown, tbl.decide("never-registered", domain.OutcomeApproved))
	require.Equal(t, 0, tbl.size())
}

func TestTableExpireLosesToDecision(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	w := tbl.add("id-1", domain.Item{ID: "a"})

	require.Equal(t, decisionResolved, tbl.decide("id-1", domain.OutcomeApproved))
	require.False(t, tbl.expire("id-1", domain.OutcomeTimedOut))

	res := <-w.done
	require.Equal(t, domain.OutcomeApproved, res.outcome)
}

func TestTableEditLifecycle(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	tbl.add("id-1", domain.Item{ID: "a", Summary: "old"})

	require.True(t, tbl.beginEdit("id-1", "sender"))
	require.False(t, tbl.beginEdit("id-1", "sender"), "already editing")
	require.Equal(t, decisionEditing, tbl.decide("id-1", domain.OutcomeApproved))

	item, id, ok := tbl.applyEdit("sender", "new")
	require.True(t, ok)
	require.Equal(t, "id-1", id)
	require.Equal(t, "new", item.Summary)

	_, ok = tbl.editTarget("sender")
	require.False(t, ok, "session cleared after apply")
	require.Equal(t, decisionResolved, tbl.decide("id-1", domain.OutcomeApproved))
}

func TestTableDrain(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	w1 := tbl.add("id-1", domain.Item{})
	w2 := tbl.add("id-2", domain.Item{})
	tbl.beginEdit("id-2", "sender")

	require.Equal(t, 2, tbl.drain(domain.OutcomeTimedOut))
	require.Equal(t, 0, tbl.size())
	require.Equal(t, domain.OutcomeTimedOut, (<-w1.done).outcome)
	require.Equal(t, domain.OutcomeTimedOut, (<-w2.done).outcome)

	_, ok := tbl.editTarget("sender")
	require.False(t, ok, "edit session cleared by drain")
}
