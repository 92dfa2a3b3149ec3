package hostfuncs

import (
	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/wireformat"
	"go.uber.org/zap"
)

// collapse maps a handler outcome onto the record result field.
// A failure is logged and becomes wireformat.ResultFailure. A success value
// that does not fit an int32 is a contract violation and panics.
func collapse(logger *zap.Logger, name string, rec wireformat.Record, v uint32, err error) int32 {
	if err != nil {
		logger.Debug("op failure collapsed",
			zap.String("op", name),
			zap.Stringer("record", rec),
			zap.Error(err),
		)
		return wireformat.ResultFailure
	}

	defer tagViolation(name)
	return wireformat.CheckedResult(v)
}

// decodeRecord decodes the control buffer of op name or panics with a
// ContractError naming the op.
func decodeRecord(name string, control []byte) wireformat.Record {
	defer tagViolation(name)
	return wireformat.MustDecode(control)
}

// tagViolation re-panics a recovered *errors.ContractError with its Op set
// to name. It must be deferred directly.
func tagViolation(name string) {
	r := recover()
	if r == nil {
		return
	}
	if ce, ok := r.(*errors.ContractError); ok && ce.Op == "" {
		ce.Op = name
	}
	panic(r)
}
