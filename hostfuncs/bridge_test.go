package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math"
	"testing"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/internal/testutil"
	"github.com/deno-lib/oned/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// fakeEngine keeps bound slots and delivers async responses in issue order.
type fakeEngine struct {
	sync      map[string]ports.SyncOpFunc
	async     map[string]ports.AsyncOpFunc
	pending   []ports.PendingOp
	delivered [][]byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		sync:  make(map[string]ports.SyncOpFunc),
		async: make(map[string]ports.AsyncOpFunc),
	}
}

func (e *fakeEngine) RegisterSyncOp(name string, fn ports.SyncOpFunc) error {
	if _, ok := e.sync[name]; ok {
		return fmt.Errorf("op %q already bound", name)
	}
	e.sync[name] = fn
	return nil
}

func (e *fakeEngine) RegisterAsyncOp(name string, fn ports.AsyncOpFunc) error {
	if _, ok := e.async[name]; ok {
		return fmt.Errorf("op %q already bound", name)
	}
	e.async[name] = fn
	return nil
}

func (e *fakeEngine) call(name string, control, zeroCopy []byte) []byte {
	return e.sync[name](context.Background(), control, zeroCopy)
}

func (e *fakeEngine) start(name string, control, zeroCopy []byte) {
	e.pending = append(e.pending, e.async[name](context.Background(), control, zeroCopy))
}

func (e *fakeEngine) Poll(ctx context.Context) (bool, error) {
	kept := e.pending[:0]
	for _, p := range e.pending {
		if resp, ready := p.Poll(ctx); ready {
			e.delivered = append(e.delivered, resp)
			continue
		}
		kept = append(kept, p)
	}
	e.pending = kept
	return len(e.pending) == 0, nil
}

func (e *fakeEngine) takeDelivered() [][]byte {
	out := e.delivered
	e.delivered = nil
	return out
}

var _ ports.Engine = (*fakeEngine)(nil)

func bindOps(t *testing.T, st *state.State, opts ...RegistryOption) *fakeEngine {
	t.Helper()

	reg, err := NewRegistry(opts...)
	require.NoError(t, err)

	eng := newFakeEngine()
	require.NoError(t, reg.Bind(eng, st))
	return eng
}

func TestBind_RegistersSlotsByKind(t *testing.T) {
	eng := bindOps(t, state.New(), WithBundle(ProcessBundle()))

	assert.Contains(t, eng.sync, OpRun)
	assert.Contains(t, eng.sync, OpKill)
	assert.Contains(t, eng.async, OpStatus)
	assert.NotContains(t, eng.sync, OpStatus)
}

func TestBind_EngineError(t *testing.T) {
	reg, err := NewRegistry(WithSyncOp("ping", constOp(1)))
	require.NoError(t, err)

	eng := newFakeEngine()
	require.NoError(t, reg.Bind(eng, state.New()))

	err = reg.Bind(eng, state.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `bind op "ping"`)
}

func TestSyncSlot_Success(t *testing.T) {
	var gotRID uint32
	var gotPayload []byte
	slot := SyncSlot("echo", state.New(), func(_ context.Context, _ *state.State, rid uint32, zeroCopy []byte) (uint32, error) {
		gotRID, gotPayload = rid, zeroCopy
		return 42, nil
	})

	resp := slot(context.Background(), testutil.Record(0, 3, 0), []byte("hi"))

	testutil.AssertRecord(t, resp, 0, 3, 42)
	assert.Equal(t, uint32(3), gotRID)
	assert.Equal(t, []byte("hi"), gotPayload)
}

func TestSyncSlot_OpContext(t *testing.T) {
	slot := SyncSlot("inspect", state.New(), func(ctx context.Context, _ *state.State, rid uint32, _ []byte) (uint32, error) {
		oc, ok := OpContextFrom(ctx)
		require.True(t, ok)
		assert.Equal(t, "inspect", oc.OpName())
		assert.Equal(t, rid, oc.Record().RID)
		return 0, nil
	})

	testutil.AssertRecord(t, slot(context.Background(), testutil.Record(0, 8, 0), nil), 0, 8, 0)
}

func TestSyncSlot_FailureCollapses(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.DebugLevel)
	st := state.New(state.WithLogger(logger))
	slot := SyncSlot("fail", st, func(context.Context, *state.State, uint32, []byte) (uint32, error) {
		return 77, stdErrors.New("boom")
	})

	testutil.AssertRecord(t, slot(context.Background(), testutil.Record(0, 4, 0), nil), 0, 4, -1)
	require.Equal(t, 1, logs.FilterMessage("op failure collapsed").Len())
}

func TestSyncSlot_ResultIgnoresIncomingResult(t *testing.T) {
	slot := SyncSlot("zero", state.New(), constOp(0))
	testutil.AssertRecord(t, slot(context.Background(), testutil.Record(0, 1, -9), nil), 0, 1, 0)
}

func TestSyncSlot_Overflow(t *testing.T) {
	top := SyncSlot("max", state.New(), constOp(math.MaxInt32))
	testutil.AssertRecord(t, top(context.Background(), testutil.Record(0, 1, 0), nil), 0, 1, math.MaxInt32)

	over := SyncSlot("over", state.New(), constOp(math.MaxInt32+1))
	ce := testutil.RequireContractViolation(t, errors.ViolationOverflow, func() {
		over(context.Background(), testutil.Record(0, 1, 0), nil)
	})
	assert.Equal(t, "over", ce.Op)
}

func TestSyncSlot_RoutingViolation(t *testing.T) {
	called := false
	slot := SyncSlot("run", state.New(), func(context.Context, *state.State, uint32, []byte) (uint32, error) {
		called = true
		return 0, nil
	})

	ce := testutil.RequireContractViolation(t, errors.ViolationRouting, func() {
		slot(context.Background(), testutil.Record(9, 1, 0), nil)
	})
	assert.Equal(t, "run", ce.Op)
	assert.False(t, called)
}

func TestSyncSlot_LengthViolation(t *testing.T) {
	slot := SyncSlot("run", state.New(), constOp(0))

	for _, size := range []int{0, 8, 11, 13, 24} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			ce := testutil.RequireContractViolation(t, errors.ViolationLength, func() {
				slot(context.Background(), make([]byte, size), nil)
			})
			assert.Equal(t, "run", ce.Op)
		})
	}
}

func TestAsyncSlot_RoutingViolation(t *testing.T) {
	slot := AsyncSlot("status", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return Ready(0)
	})

	ce := testutil.RequireContractViolation(t, errors.ViolationRouting, func() {
		slot(context.Background(), testutil.Record(0, 1, 0), nil)
	})
	assert.Equal(t, "status", ce.Op)
}

func TestAsyncSlot_LengthViolation(t *testing.T) {
	slot := AsyncSlot("status", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return Ready(0)
	})

	testutil.RequireContractViolation(t, errors.ViolationLength, func() {
		slot(context.Background(), make([]byte, 4), nil)
	})
}

func TestAsyncSlot_Correlation(t *testing.T) {
	launcher := testutil.NewFakeLauncher()
	st := state.New(state.WithLauncher(launcher))
	eng := bindOps(t, st, WithBundle(ProcessBundle()))

	testutil.AssertRecord(t, eng.call(OpRun, testutil.Record(0, 7, 0), []byte(`{"cmd":["sleep","1"]}`)), 0, 7, 100)
	testutil.AssertRecord(t, eng.call(OpRun, testutil.Record(0, 5, 0), []byte(`{"cmd":["sleep","2"]}`)), 0, 5, 101)
	procs := launcher.Processes()

	eng.start(OpStatus, testutil.Record(11, 7, 0), nil)
	eng.start(OpStatus, testutil.Record(10, 5, 0), nil)

	done, err := eng.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, eng.takeDelivered())

	procs[0].Exit(3)
	done, err = eng.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	got := eng.takeDelivered()
	require.Len(t, got, 1)
	testutil.AssertRecord(t, got[0], 11, 7, 3)

	procs[1].Exit(4)
	done, err = eng.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	got = eng.takeDelivered()
	require.Len(t, got, 1)
	testutil.AssertRecord(t, got[0], 10, 5, 4)
}

func TestAsyncSlot_FailureCollapses(t *testing.T) {
	slot := AsyncSlot("fail", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return Fail(stdErrors.New("nope"))
	})

	resp, ready := slot(context.Background(), testutil.Record(3, 2, 0), nil).Poll(context.Background())
	require.True(t, ready)
	testutil.AssertRecord(t, resp, 3, 2, -1)
}

func TestAsyncSlot_NilFuture(t *testing.T) {
	slot := AsyncSlot("nil", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return nil
	})

	resp, ready := slot(context.Background(), testutil.Record(4, 1, 0), nil).Poll(context.Background())
	require.True(t, ready)
	testutil.AssertRecord(t, resp, 4, 1, -1)
}

func TestAsyncSlot_Overflow(t *testing.T) {
	slot := AsyncSlot("big", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return Ready(math.MaxUint32)
	})
	pending := slot(context.Background(), testutil.Record(1, 1, 0), nil)

	ce := testutil.RequireContractViolation(t, errors.ViolationOverflow, func() {
		pending.Poll(context.Background())
	})
	assert.Equal(t, "big", ce.Op)
}

func TestAsyncSlot_PolledAfterCompletion(t *testing.T) {
	slot := AsyncSlot("once", state.New(), func(context.Context, *state.State, uint32, []byte) Future {
		return Ready(1)
	})
	pending := slot(context.Background(), testutil.Record(1, 1, 0), nil)

	_, ready := pending.Poll(context.Background())
	require.True(t, ready)

	testutil.RequireContractViolation(t, errors.ViolationRouting, func() {
		pending.Poll(context.Background())
	})
}

func TestSlots_ShareState(t *testing.T) {
	st := state.New()
	var seen []*state.State

	eng := bindOps(t, st,
		WithSyncOp("put", func(_ context.Context, s *state.State, rid uint32, _ []byte) (uint32, error) {
			seen = append(seen, s)
			return 0, s.Processes.Insert(rid, testutil.NewFakeProcess(int(rid)))
		}),
		WithAsyncOp("get", func(_ context.Context, s *state.State, rid uint32, _ []byte) Future {
			seen = append(seen, s)
			p, ok := s.Processes.Get(rid)
			if !ok {
				return Fail(errors.ErrNotFound)
			}
			return Ready(uint32(p.Pid()))
		}),
	)

	testutil.AssertRecord(t, eng.call("put", testutil.Record(0, 6, 0), nil), 0, 6, 0)
	eng.start("get", testutil.Record(1, 6, 0), nil)
	_, err := eng.Poll(context.Background())
	require.NoError(t, err)

	got := eng.takeDelivered()
	require.Len(t, got, 1)
	testutil.AssertRecord(t, got[0], 1, 6, 6)

	require.Len(t, seen, 2)
	assert.Same(t, st, seen[0])
	assert.Same(t, st, seen[1])
}
