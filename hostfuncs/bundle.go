package hostfuncs

// OpBundle is a pre-configured set of related ops.
// Bundles allow registering multiple ops at once.
type OpBundle interface {
	Ops() []Op
}

// staticBundle implements OpBundle with a fixed set of ops.
type staticBundle struct {
	ops []Op
}

func (b *staticBundle) Ops() []Op {
	return b.ops
}

// NewBundle groups ops into a bundle.
func NewBundle(ops ...Op) OpBundle {
	return &staticBundle{ops: ops}
}

// ProcessBundle returns the process ops: run, kill and status.
func ProcessBundle() OpBundle {
	return NewBundle(
		SyncOp(OpRun, RunProcess),
		SyncOp(OpKill, KillProcess),
		AsyncOp(OpStatus, ProcessStatus),
	)
}

// WithBundle registers all ops from a bundle.
func WithBundle(bundle OpBundle) RegistryOption {
	return func(b *registryBuilder) {
		for _, op := range bundle.Ops() {
			if err := b.addOp(op); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}
