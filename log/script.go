package log

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ScriptMessage is the JSON form of a structured script log line. Scripts may
// also write plain text, which is logged at info level.
type ScriptMessage struct {
	Level   string     `json:"level"`
	Message string     `json:"message"`
	Attrs   []AttrWire `json:"attrs,omitempty"`
}

// AttrWire is a single typed attribute of a ScriptMessage.
type AttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error"
	Value string `json:"value"` // String representation of the value
}

// DecodeScriptMessage interprets data as a ScriptMessage when it is a JSON
// object with a message, and as plain text otherwise.
func DecodeScriptMessage(data []byte) ScriptMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg ScriptMessage
		if err := json.Unmarshal(trimmed, &msg); err == nil && msg.Message != "" {
			return msg
		}
	}
	return ScriptMessage{Level: "info", Message: string(data)}
}

// Write logs m to logger with extra fields appended after the attributes.
func (m ScriptMessage) Write(logger *zap.Logger, extra ...zap.Field) {
	lvl, err := ParseLevel(m.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	fields := make([]zap.Field, 0, len(m.Attrs)+len(extra))
	for _, attr := range m.Attrs {
		fields = append(fields, attr.Field())
	}
	fields = append(fields, extra...)

	if ce := logger.Check(lvl, m.Message); ce != nil {
		ce.Write(fields...)
	}
}

// Field converts the attribute to a zap field. Values that do not parse as
// their declared type are kept as strings.
func (a AttrWire) Field() zap.Field {
	switch a.Type {
	case "int64":
		if v, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			return zap.Int64(a.Key, v)
		}
	case "uint64":
		if v, err := strconv.ParseUint(a.Value, 10, 64); err == nil {
			return zap.Uint64(a.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(a.Value); err == nil {
			return zap.Bool(a.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(a.Value, 64); err == nil {
			return zap.Float64(a.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, a.Value); err == nil {
			return zap.Time(a.Key, v)
		}
	case "duration":
		if v, err := time.ParseDuration(a.Value); err == nil {
			return zap.Duration(a.Key, v)
		}
	}
	return zap.String(a.Key, a.Value)
}
