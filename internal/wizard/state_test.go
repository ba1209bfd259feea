package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableCoversEveryState(t *testing.T) {
	require.Len(t, transitions, len(States))
	for _, st := range States {
		next, ok := transitions[st]
		require.True(t, ok, "state %s has no transitions", st)
		assert.NotEmpty(t, next, st)
		for _, to := range next {
			assert.True(t, to.Valid(), "%s -> %s", st, to)
		}

		menu := Render(&Session{State: st, Catalog: testCatalog()})
		assert.NotEmpty(t, menu.Rows, st)
		assert.True(t, menu.Has(ActionCancel), st)
	}
}

func TestEveryStateIsReachable(t *testing.T) {
	seen := map[State]bool{StateRoleSelect: true}
	queue := []State{StateRoleSelect}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range transitions[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, st := range States {
		assert.True(t, seen[st], "%s unreachable", st)
	}
}

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, checkTransition(StateDetailsHub, StateDetailsBudget))
	assert.NoError(t, checkTransition(StateDescription, StateDescription))
	assert.ErrorIs(t, checkTransition(StateRoleSelect, StateSubmit), ErrIllegalTransition)
	assert.ErrorIs(t, checkTransition(StateDetailsDate, StateDetailsBudget), ErrIllegalTransition)
	assert.False(t, CanTransition("bogus", "bogus"))
}

func TestMenuMatchIgnoresDecoration(t *testing.T) {
	menu := Render(&Session{State: StateLocationKind})
	for in, want := range map[string]Action{
		"🌐 Remote":                  ActionRemote,
		"remote":                    ActionRemote,
		"  REMOTE ":                 ActionRemote,
		"at the contractor's place": ActionContractorSite,
		"⬅️ Back":                   ActionBack,
	} {
		c, ok := menu.Match(in)
		require.True(t, ok, in)
		assert.Equal(t, want, c.Action, in)
	}
	_, ok := menu.Match("📍")
	assert.False(t, ok)
}

func TestLevelCategoriesSortedByName(t *testing.T) {
	s := NewSession(1, testNow)
	s.Catalog = testCatalog()
	s.CategoryPath = []int64{1}
	got := s.levelCategories(s.currentParent())
	require.Len(t, got, 2)
	assert.Equal(t, "Electrical", got[0].Name)
	assert.Equal(t, "Plumbing", got[1].Name)

	roots := s.levelCategories(0)
	require.Len(t, roots, 2)
	assert.Equal(t, "Design", roots[0].Name)
}
