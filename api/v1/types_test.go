package v1

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestPortStatusesRenderTable(t *testing.T) {
	ps := PortStatuses{
		{Name: "line1", Connected: true, Status: "connected"},
		{Name: "line2", Connected: false, Status: "disconnected", Reason: "dial timeout"},
	}
	var buf bytes.Buffer
	ps.RenderTable(&buf)

	out := buf.String()
	assert.Contains(t, out, "line1")
	assert.Contains(t, out, "line2")
	assert.Contains(t, out, "dial timeout")
}

func TestDataPointInfosRenderTable(t *testing.T) {
	dps := DataPointInfos{
		{Name: "temp1", Description: "boiler feed temperature"},
	}
	var buf bytes.Buffer
	dps.RenderTable(&buf)
	assert.Contains(t, buf.String(), "temp1")
	assert.Contains(t, buf.String(), "boiler feed temperature")
}

func TestCacheEntryJSONRoundTrip(t *testing.T) {
	entry := CacheEntry{
		Name:      "temp1",
		Analog:    &ValueRecord{Value: 10.5, Valid: true},
		UpdatedAt: metav1.NewTime(time.Unix(1000, 0)),
	}
	assert.Equal(t, "temp1", entry.Name)
	assert.True(t, entry.Analog.Valid)
	assert.False(t, entry.UpdatedAt.IsZero())

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var round CacheEntry
	require.NoError(t, json.Unmarshal(raw, &round))
	if diff := cmp.Diff(entry, round); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
