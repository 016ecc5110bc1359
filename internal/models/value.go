package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueType discriminates the scalar kinds a remote cell can carry.
type ValueType string

const (
	TypeNull    ValueType = "null"
	TypeBoolean ValueType = "boolean"
	TypeNumber  ValueType = "number"
	TypeBigint  ValueType = "bigint"
	TypeString  ValueType = "string"
	TypeBytes   ValueType = "bytes"
	TypeUnknown ValueType = "unknown"
)

// Value is the tagged union used uniformly for page cells, structure cells
// and query-result cells. The dynamic type of Data depends on Type:
// nil, bool, float64, int64, string or []byte.
type Value struct {
	Type ValueType
	Data any
}

func Null() Value                { return Value{Type: TypeNull} }
func Boolean(b bool) Value       { return Value{Type: TypeBoolean, Data: b} }
func Number(f float64) Value     { return Value{Type: TypeNumber, Data: f} }
func Bigint(i int64) Value       { return Value{Type: TypeBigint, Data: i} }
func String(s string) Value      { return Value{Type: TypeString, Data: s} }
func Bytes(b []byte) Value       { return Value{Type: TypeBytes, Data: b} }
func Unknown(repr string) Value  { return Value{Type: TypeUnknown, Data: repr} }

// Bool returns the boolean payload, false for any other kind.
func (v Value) Bool() bool {
	b, ok := v.Data.(bool)
	return ok && b
}

// Text returns the string payload, "" for any other kind.
func (v Value) Text() string {
	s, _ := v.Data.(string)
	return s
}

// Display renders the value for human consumption (table cells, SQL editor
// results, structure rows). Bytes are shown base64-encoded.
func (v Value) Display() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		if v.Bool() {
			return "true"
		}
		return "false"
	case TypeNumber:
		f, _ := v.Data.(float64)
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeBigint:
		i, _ := v.Data.(int64)
		return strconv.FormatInt(i, 10)
	case TypeString:
		return v.Text()
	case TypeBytes:
		b, _ := v.Data.([]byte)
		return base64.StdEncoding.EncodeToString(b)
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// SQLLiteral renders the value as a literal usable in a generated statement.
// Strings have embedded quotes doubled; bytes use the X'..' hex form.
func (v Value) SQLLiteral() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		if v.Bool() {
			return "1"
		}
		return "0"
	case TypeNumber:
		f, _ := v.Data.(float64)
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeBigint:
		i, _ := v.Data.(int64)
		return strconv.FormatInt(i, 10)
	case TypeBytes:
		b, _ := v.Data.([]byte)
		return fmt.Sprintf("X'%x'", b)
	default:
		return quoteSQLString(v.Display())
	}
}

func quoteSQLString(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '\'')
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\'')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

type valueJSON struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value as the wire shape {"type": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Type {
	case TypeNull:
		return json.Marshal(valueJSON{Type: TypeNull})
	case TypeBytes:
		b, _ := v.Data.([]byte)
		payload = base64.StdEncoding.EncodeToString(b)
	default:
		payload = v.Data
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.Type, Value: raw})
}

// UnmarshalJSON decodes the wire shape back into the tagged union.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case TypeNull:
		*v = Null()
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return fmt.Errorf("boolean value: %w", err)
		}
		*v = Boolean(b)
	case TypeNumber:
		var f float64
		if err := json.Unmarshal(wire.Value, &f); err != nil {
			return fmt.Errorf("number value: %w", err)
		}
		*v = Number(f)
	case TypeBigint:
		var i int64
		if err := json.Unmarshal(wire.Value, &i); err != nil {
			return fmt.Errorf("bigint value: %w", err)
		}
		*v = Bigint(i)
	case TypeString:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("string value: %w", err)
		}
		*v = String(s)
	case TypeBytes:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return fmt.Errorf("bytes value: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("bytes value: %w", err)
		}
		*v = Bytes(b)
	default:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			s = string(wire.Value)
		}
		*v = Unknown(s)
	}
	return nil
}

// FromDriver converts a database/sql scan result into a Value. Integers wide
// enough to lose precision in a JSON number are tagged bigint.
func FromDriver(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Boolean(t)
	case int64:
		const maxExact = 1 << 53
		if t > maxExact || t < -maxExact {
			return Bigint(t)
		}
		return Number(float64(t))
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case time.Time:
		return String(t.Format(time.RFC3339))
	default:
		return Unknown(fmt.Sprintf("%v", t))
	}
}
