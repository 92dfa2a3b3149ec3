// Package wireformat defines the control record exchanged between the host and
// the hosted engine on every op call. The layout is the binding ABI contract:
//
//	offset 0  promise_id  uint32  0 = synchronous call, otherwise a correlation token
//	offset 4  rid         uint32  opaque resource id
//	offset 8  result      int32   response value, -1 on failure
//
// All fields are little-endian, matching WebAssembly linear memory. There is
// no padding and no header: a control buffer is exactly RecordSize bytes.
package wireformat

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/deno-lib/oned/domain/errors"
)

// RecordSize is the exact width of an encoded Record.
const RecordSize = 12

// ResultFailure is the only failure value a response carries.
const ResultFailure int32 = -1

const (
	offsetPromiseID = 0
	offsetRID       = 4
	offsetResult    = 8
)

// Record is the unit of request/response framing.
type Record struct {
	PromiseID uint32
	RID       uint32
	Result    int32
}

// IsSync reports whether the record belongs to a synchronous call.
func (r Record) IsSync() bool {
	return r.PromiseID == 0
}

// WithResult returns a copy of r carrying result, keeping promise id and rid.
func (r Record) WithResult(result int32) Record {
	r.Result = result
	return r
}

// Bytes returns the encoded record as a freshly allocated slice.
func (r Record) Bytes() []byte {
	buf := Encode(r)
	return buf[:]
}

func (r Record) String() string {
	return fmt.Sprintf("{promise_id=%d rid=%d result=%d}", r.PromiseID, r.RID, r.Result)
}

// Encode writes r into a fixed-width buffer.
func Encode(r Record) [RecordSize]byte {
	var buf [RecordSize]byte
	binary.LittleEndian.PutUint32(buf[offsetPromiseID:], r.PromiseID)
	binary.LittleEndian.PutUint32(buf[offsetRID:], r.RID)
	binary.LittleEndian.PutUint32(buf[offsetResult:], uint32(r.Result)) //nolint:gosec // G115: two's complement round trip
	return buf
}

// Decode reads a record from buf. It fails with a ContractError when buf is
// not exactly RecordSize bytes; it never truncates or pads.
func Decode(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, errors.NewContractError(errors.ViolationLength,
			"control buffer is %d bytes, want %d", len(buf), RecordSize)
	}
	return Record{
		PromiseID: binary.LittleEndian.Uint32(buf[offsetPromiseID:]),
		RID:       binary.LittleEndian.Uint32(buf[offsetRID:]),
		Result:    int32(binary.LittleEndian.Uint32(buf[offsetResult:])), //nolint:gosec // G115: two's complement round trip
	}, nil
}

// MustDecode is like Decode but panics with the *errors.ContractError.
// A mismatched length means host and engine are out of sync.
func MustDecode(buf []byte) Record {
	r, err := Decode(buf)
	if err != nil {
		panic(err)
	}
	return r
}

// FitsResult reports whether a handler success value can travel in the result field.
func FitsResult(v uint32) bool {
	return v <= math.MaxInt32
}

// CheckedResult converts a handler success value into a result field.
// Values that do not fit an int32 are a handler-author bug and panic with a
// ContractError.
func CheckedResult(v uint32) int32 {
	if !FitsResult(v) {
		panic(errors.NewContractError(errors.ViolationOverflow,
			"result %d does not fit int32", v))
	}
	return int32(v)
}
