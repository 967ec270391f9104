package conversation

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(s *State) []Message {
	return s.Snapshot()[1:]
}

func TestNewState_Defaults(t *testing.T) {
	s := NewState(8, "")

	assert.Equal(t, 8, s.MaxTurns())
	assert.Equal(t, DefaultSystemPrompt, s.SystemPrompt())
	assert.True(t, s.Empty())

	custom := NewState(-3, "Talk like a pirate.")
	assert.Equal(t, 0, custom.MaxTurns())
	assert.Equal(t, "Talk like a pirate.", custom.SystemPrompt())
}

func TestSnapshot_AlwaysStartsWithOneSystemMessage(t *testing.T) {
	s := NewState(2, "sys")

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Message{Role: RoleSystem, Content: "sys"}, snap[0])

	for i := 0; i < 10; i++ {
		s.AddUser(fmt.Sprintf("u%d", i))
		s.AddAssistant(fmt.Sprintf("a%d", i))

		snap = s.Snapshot()
		assert.Equal(t, RoleSystem, snap[0].Role)
		for _, m := range snap[1:] {
			assert.NotEqual(t, RoleSystem, m.Role)
		}
	}
}

func TestAddUser_ThenSnapshotEndsWithUserMessage(t *testing.T) {
	s := NewState(8, "")
	s.AddUser("x")

	snap := s.Snapshot()
	assert.Equal(t, Message{Role: RoleUser, Content: "x"}, snap[len(snap)-1])
}

func TestTrim_EvictsOldestFirst(t *testing.T) {
	s := NewState(2, "")

	s.AddUser("a1")
	s.AddAssistant("b1")
	s.AddUser("a2")
	s.AddAssistant("b2")
	s.AddUser("a3")

	assert.Equal(t, []Message{
		{Role: RoleAssistant, Content: "b1"},
		{Role: RoleUser, Content: "a2"},
		{Role: RoleAssistant, Content: "b2"},
		{Role: RoleUser, Content: "a3"},
	}, history(s))
}

func TestTrim_ZeroTurnsKeepsNothing(t *testing.T) {
	s := NewState(0, "")

	s.AddUser("hello")
	assert.Equal(t, 0, s.Len())
	s.AddAssistant("hi")
	assert.Equal(t, 0, s.Len())
	assert.Len(t, s.Snapshot(), 1)
}

func TestTrim_BoundHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for maxTurns := 0; maxTurns <= 5; maxTurns++ {
		s := NewState(maxTurns, "")
		var all []Message

		for i := 0; i < 200; i++ {
			text := fmt.Sprintf("m%d", i)
			if rng.Intn(2) == 0 {
				s.AddUser(text)
				all = append(all, Message{Role: RoleUser, Content: text})
			} else {
				s.AddAssistant(text)
				all = append(all, Message{Role: RoleAssistant, Content: text})
			}

			require.LessOrEqual(t, s.Len(), 2*maxTurns)

			// The retained messages are exactly the newest ones.
			want := all
			if len(want) > 2*maxTurns {
				want = want[len(want)-2*maxTurns:]
			}
			require.Equal(t, len(want), s.Len())
			if len(want) > 0 {
				require.Equal(t, want, history(s))
			}
		}
	}
}

func TestReset_IsIdempotentAndKeepsConfiguration(t *testing.T) {
	s := NewState(3, "sys")
	s.AddUser("a")
	s.AddAssistant("b")

	s.Reset()
	once := s.Snapshot()
	s.Reset()
	twice := s.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, []Message{{Role: RoleSystem, Content: "sys"}}, twice)
	assert.Equal(t, 3, s.MaxTurns())
	assert.Equal(t, "sys", s.SystemPrompt())
	assert.True(t, s.Empty())
}

func TestSnapshot_IsDefensiveCopy(t *testing.T) {
	s := NewState(4, "sys")
	s.AddUser("original")

	snap := s.Snapshot()
	snap[0].Content = "hijacked"
	snap[1].Content = "tampered"
	_ = append(snap, Message{Role: RoleUser, Content: "extra"})

	again := s.Snapshot()
	assert.Equal(t, "sys", again[0].Content)
	assert.Equal(t, "original", again[1].Content)
	assert.Len(t, again, 2)
}

func TestState_ConcurrentAppendsRespectBound(t *testing.T) {
	s := NewState(4, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.AddUser(fmt.Sprintf("u%d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.Snapshot()
			s.AddAssistant(fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
}
