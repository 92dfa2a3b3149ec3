// Package entities holds the payload and result types exchanged with ops.
// Payloads travel as JSON in an op call's auxiliary buffer.
package entities
