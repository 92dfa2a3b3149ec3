// Package testutil provides common test utilities and assertions for oned tests
package testutil

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Record encodes a control record.
func Record(promiseID, rid uint32, result int32) []byte {
	return wireformat.Record{PromiseID: promiseID, RID: rid, Result: result}.Bytes()
}

// AssertRecord decodes buf and compares it with the expected fields.
func AssertRecord(t *testing.T, buf []byte, promiseID, rid uint32, result int32, msgAndArgs ...interface{}) {
	t.Helper()

	got, err := wireformat.Decode(buf)
	require.NoError(t, err, msgAndArgs...)
	assert.Equal(t, wireformat.Record{PromiseID: promiseID, RID: rid, Result: result}, got, msgAndArgs...)
}

// RequireContractViolation asserts that f panics with a *errors.ContractError
// of the given violation and returns it.
func RequireContractViolation(t *testing.T, v errors.Violation, f func()) *errors.ContractError {
	t.Helper()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		f()
	}()

	require.NotNil(t, recovered, "expected a contract violation panic")
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)

	var ce *errors.ContractError
	require.True(t, stdErrors.As(err, &ce), "panic value %v is not a contract error", err)
	assert.Equal(t, v, ce.Violation)
	return ce
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// MustJSON marshals v or fails the test.
func MustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, fmt.Sprintf("marshal %T", v))
	return data
}
