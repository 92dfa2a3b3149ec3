package state

import (
	"testing"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Defaults(t *testing.T) {
	s := New()

	require.NotNil(t, s.Processes)
	require.NotNil(t, s.Logger)
	assert.Nil(t, s.Launcher)
	assert.Equal(t, 0, s.Processes.Len())
}

func TestNew_Options(t *testing.T) {
	logger := zap.NewExample()
	s := New(WithLogger(logger), WithLogger(nil))

	assert.Same(t, logger, s.Logger)
}

func TestWake_Coalesces(t *testing.T) {
	s := New()

	s.Wake()
	s.Wake()
	s.Wake()

	select {
	case <-s.Woken():
	default:
		t.Fatal("expected a wake signal")
	}

	select {
	case <-s.Woken():
		t.Fatal("wake signals should coalesce into one")
	default:
	}
}

func TestResourceTable(t *testing.T) {
	table := NewResourceTable[string]()

	require.NoError(t, table.Insert(0, "zero"))
	require.NoError(t, table.Insert(7, "seven"))
	require.NoError(t, table.Insert(5, "five"))

	err := table.Insert(7, "again")
	assert.ErrorIs(t, err, errors.ErrExists)

	v, ok := table.Get(7)
	assert.True(t, ok)
	assert.Equal(t, "seven", v)

	_, ok = table.Get(999)
	assert.False(t, ok)

	var order []uint32
	table.Each(func(rid uint32, _ string) bool {
		order = append(order, rid)
		return true
	})
	assert.Equal(t, []uint32{0, 5, 7}, order)

	v, ok = table.Remove(5)
	assert.True(t, ok)
	assert.Equal(t, "five", v)
	assert.Equal(t, 2, table.Len())

	_, ok = table.Remove(5)
	assert.False(t, ok)
}

func TestResourceTable_EachStops(t *testing.T) {
	table := NewResourceTable[int]()
	for rid := uint32(1); rid <= 5; rid++ {
		require.NoError(t, table.Insert(rid, int(rid)))
	}

	visited := 0
	table.Each(func(uint32, int) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestReap(t *testing.T) {
	s := New()
	running := testutil.NewFakeProcess(1)
	exited := testutil.NewFakeProcess(2)
	untouched := testutil.NewFakeProcess(3)
	require.NoError(t, s.Processes.Insert(1, running))
	require.NoError(t, s.Processes.Insert(2, exited))
	require.NoError(t, s.Processes.Insert(3, untouched))

	s.MarkKilled(1, running)
	s.MarkKilled(2, exited)
	exited.Exit(137)
	untouched.Exit(0)

	assert.Equal(t, 1, s.Reap())
	_, ok := s.Processes.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Processes.Len(), "running and unkilled processes stay tracked")

	running.Exit(137)
	assert.Equal(t, 1, s.Reap())
	assert.Equal(t, 1, s.Processes.Len())
}

func TestReap_DropsStaleMark(t *testing.T) {
	s := New()
	old := testutil.NewFakeProcess(1)
	require.NoError(t, s.Processes.Insert(7, old))
	s.MarkKilled(7, old)

	s.Processes.Remove(7)
	reused := testutil.NewFakeProcess(2)
	require.NoError(t, s.Processes.Insert(7, reused))
	old.Exit(0)
	reused.Exit(0)

	assert.Zero(t, s.Reap())
	cur, ok := s.Processes.Get(7)
	require.True(t, ok)
	assert.Same(t, reused, cur)
}
