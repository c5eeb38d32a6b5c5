package deviceinterp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coophouse/iocore/pkg/transport"
)

const templateJSON = `{
  "function_code": "holding",
  "batch_start": 0,
  "batch_count": 4,
  "registers": [
    {"name": "temperature", "address": 0, "count": 1, "type": "int16", "multiplier": 0.1, "access": "r"},
    {"name": "setpoint", "address": 1, "count": 1, "type": "int16", "multiplier": 0.1, "access": "rw"},
    {"name": "mode", "address": 2, "count": 1, "type": "enum", "values": {"0": "off", "1": "heat", "2": "cool"}, "access": "r"},
    {"name": "alarms", "address": 3, "count": 1, "type": "bitmask", "bits": {"0": "high_temp", "1": "low_temp"}, "access": "r"}
  ]
}`

func TestReadRecordSingleBatch(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	sim.SetRegister(1, 0, 215)  // 21.5
	sim.SetRegister(1, 1, 200)  // 20.0
	sim.SetRegister(1, 2, 1)    // heat
	sim.SetRegister(1, 3, 0b01) // high_temp

	tmpl, err := ParseTemplate([]byte(templateJSON))
	require.NoError(t, err)

	rec, err := ReadRecord(context.Background(), sim, 1, tmpl)
	require.NoError(t, err)

	assert.InDelta(t, 21.5, rec["temperature"], 0.001)
	assert.InDelta(t, 20.0, rec["setpoint"], 0.001)
	assert.Equal(t, "heat", rec["mode"])
	assert.Equal(t, map[string]bool{"high_temp": true, "low_temp": false}, rec["alarms"])
}

func TestWriteFieldRejectsReadOnly(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	tmpl, err := ParseTemplate([]byte(templateJSON))
	require.NoError(t, err)

	err = WriteField(context.Background(), sim, 1, tmpl, "temperature", 10)
	assert.Error(t, err)
}

func TestWriteFieldRoundTrip(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	tmpl, err := ParseTemplate([]byte(templateJSON))
	require.NoError(t, err)

	require.NoError(t, WriteField(context.Background(), sim, 1, tmpl, "setpoint", 22.5))

	rec, err := ReadRecord(context.Background(), sim, 1, tmpl)
	require.NoError(t, err)
	assert.InDelta(t, 22.5, rec["setpoint"], 0.001)
}

func TestMultiBatchTemplate(t *testing.T) {
	raw := `{
      "batches": [
        {"start": 0, "count": 2, "function_code": "holding"},
        {"start": 100, "count": 1, "function_code": "input"}
      ],
      "registers": [
        {"name": "a", "address": 0, "count": 1, "type": "uint16", "access": "r"},
        {"name": "b", "address": 100, "count": 1, "type": "uint16", "access": "r"}
      ]
    }`
	tmpl, err := ParseTemplate([]byte(raw))
	require.NoError(t, err)

	sim := transport.NewSimulatedDriver()
	sim.SetRegister(1, 0, 7)
	sim.SetRegister(1, 100, 9) // input register, separate table from holding

	rec, err := ReadRecord(context.Background(), sim, 1, tmpl)
	require.NoError(t, err)
	assert.Equal(t, 7.0, rec["a"])
	assert.Equal(t, 0.0, rec["b"]) // SetRegister only fills holding; input table untouched
}
