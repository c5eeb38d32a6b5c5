// Package v1 holds the wire-level JSON types the read-only HTTP status
// surface and the CLI exchange with the Manager, separate from the
// internal model/equipment types so the on-disk and in-process shapes
// can evolve independently.
package v1

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PortStatus is one port's live connection state, as returned by
// GET /v1/ports.
type PortStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

type PortStatuses []PortStatus

// RenderTable writes ports as an aligned table, used by `iocored list-ports`.
func (ps PortStatuses) RenderTable(wr io.Writer) {
	table := tablewriter.NewWriter(wr)
	table.SetHeader([]string{"Port", "Connected", "Status", "Reason"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range ps {
		table.Append([]string{p.Name, fmt.Sprintf("%t", p.Connected), p.Status, p.Reason})
	}
	table.Render()
}

// DataPointInfo describes one configured data point, as returned by
// GET /v1/data-points.
type DataPointInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type DataPointInfos []DataPointInfo

// RenderTable writes data points as an aligned table, used by
// `iocored list-data-points`.
func (dps DataPointInfos) RenderTable(wr io.Writer) {
	table := tablewriter.NewWriter(wr)
	table.SetHeader([]string{"Data Point", "Description"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, d := range dps {
		table.Append([]string{d.Name, d.Description})
	}
	table.Render()
}

// ValueRecord mirrors model.ValueRecord for the wire, as returned inside
// CacheEntry by GET /v1/data-points/:name.
type ValueRecord struct {
	Value     float64 `json:"value"`
	Raw       float64 `json:"raw"`
	Unit      string  `json:"unit,omitempty"`
	ValueType string  `json:"value_type,omitempty"`
	Valid     bool    `json:"valid"`
	MinValid  *float64 `json:"min_valid,omitempty"`
	MaxValid  *float64 `json:"max_valid,omitempty"`
}

// DigitalRecord mirrors model.DigitalRecord for the wire.
type DigitalRecord struct {
	State int `json:"state"`
}

// CacheEntry is one data point's last-known cached result, as returned
// by GET /v1/data-points/:name.
type CacheEntry struct {
	Name      string         `json:"name"`
	Analog    *ValueRecord   `json:"analog,omitempty"`
	Digital   *DigitalRecord `json:"digital,omitempty"`
	Record    map[string]any `json:"record,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt metav1.Time    `json:"updated_at"`
}

// Healthz is the GET /v1/healthz response body.
type Healthz struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// EquipmentState mirrors equipment.State for the wire. No endpoint or
// CLI command serves it.
type EquipmentState struct {
	Name         string      `json:"name"`
	Mode         string      `json:"mode"`
	CommandedOn  bool        `json:"commanded_on"`
	ActualOn     bool        `json:"actual_on"`
	IsRunning    bool        `json:"is_running"`
	Error        string      `json:"error,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Interlocked  bool        `json:"interlocked"`
	UpdatedAt    metav1.Time `json:"updated_at"`
}
