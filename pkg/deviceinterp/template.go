// Package deviceinterp implements the Generic Device Interpreter (spec
// 4.E): a register-map template parsed from JSON that turns one or more
// register batches into a named-field record, and turns a named field
// plus a value back into a write.
package deviceinterp

import (
	"encoding/json"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/errdefs"
)

// FunctionCode names which Modbus table a batch reads from.
type FunctionCode string

const (
	FunctionHolding  FunctionCode = "holding"
	FunctionInput    FunctionCode = "input"
	FunctionCoil     FunctionCode = "coil"
	FunctionDiscrete FunctionCode = "discrete"
)

// Batch is one contiguous register range read in a single transport call.
type Batch struct {
	Start        uint16       `json:"start"`
	Count        uint16       `json:"count"`
	FunctionCode FunctionCode `json:"function_code"`
}

// FieldDescriptor describes one named value carved out of a batch's reply.
type FieldDescriptor struct {
	Name       string            `json:"name"`
	Address    uint16            `json:"address"`
	Count      uint16            `json:"count"`
	Type       codec.ValueType   `json:"type"`
	Multiplier float64           `json:"multiplier"`
	Values     map[string]string `json:"values,omitempty"` // enum table, int-string keys
	Bits       map[string]string `json:"bits,omitempty"`   // bitmask table, bit-string keys
	Access     string            `json:"access"`           // "r", "w", "rw"
}

// Template is the per-device-type register map (spec "Register-map template").
type Template struct {
	FunctionCode FunctionCode      `json:"function_code"`
	BatchStart   uint16            `json:"batch_start"`
	BatchCount   uint16            `json:"batch_count"`
	Batches      []Batch           `json:"batches,omitempty"`
	Registers    []FieldDescriptor `json:"registers"`
}

// ParseTemplate decodes raw JSON into a Template.
func ParseTemplate(raw []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errdefs.ErrMalformedFrame
	}
	return &t, nil
}

// EffectiveBatches returns the explicit batch list if present, or the
// single implied batch otherwise.
func (t *Template) EffectiveBatches() []Batch {
	if len(t.Batches) > 0 {
		return t.Batches
	}
	return []Batch{{Start: t.BatchStart, Count: t.BatchCount, FunctionCode: t.FunctionCode}}
}

// FieldByName looks up a field descriptor by name.
func (t *Template) FieldByName(name string) (FieldDescriptor, bool) {
	for _, f := range t.Registers {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func (f FieldDescriptor) canRead() bool {
	return f.Access == "" || f.Access == "r" || f.Access == "rw"
}

func (f FieldDescriptor) canWrite() bool {
	return f.Access == "w" || f.Access == "rw"
}

func intTable(m map[string]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		n := 0
		neg := false
		for i, c := range k {
			if i == 0 && c == '-' {
				neg = true
				continue
			}
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		if neg {
			n = -n
		}
		out[n] = v
	}
	return out
}
