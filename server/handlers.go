package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	v1 "github.com/coophouse/iocore/api/v1"
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/version"
)

// createHealthzHandler reports the process as up. It does not reflect
// port or data-point health; use GET /v1/ports for that.
//
// @Summary healthz
// @Produce json
// @Success 200 {object} v1.Healthz
// @Router /v1/healthz [get]
func createHealthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, v1.Healthz{Status: "ok", Version: version.Version})
	}
}

// createListPortsHandler lists every configured port's live connection state.
//
// @Summary list ports
// @Produce json
// @Success 200 {array} v1.PortStatus
// @Router /v1/ports [get]
func (s *Server) createListPortsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make(v1.PortStatuses, 0)
		for _, ps := range s.mgr.GetPortStatuses() {
			out = append(out, v1.PortStatus{
				Name:      ps.Name,
				Connected: ps.Connected,
				Status:    string(ps.Status),
				Reason:    ps.Reason,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// createListDataPointsHandler lists every configured data point.
//
// @Summary list data points
// @Produce json
// @Success 200 {array} v1.DataPointInfo
// @Router /v1/data-points [get]
func (s *Server) createListDataPointsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make(v1.DataPointInfos, 0)
		for name, desc := range s.mgr.ListDataPoints() {
			out = append(out, v1.DataPointInfo{Name: name, Description: desc})
		}
		c.JSON(http.StatusOK, out)
	}
}

// createGetDataPointHandler returns one data point's last cached result
// without touching the transport.
//
// @Summary get a data point's cached value
// @Produce json
// @Param name path string true "data point name"
// @Success 200 {object} v1.CacheEntry
// @Failure 404 {object} map[string]string
// @Router /v1/data-points/{name} [get]
func (s *Server) createGetDataPointHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		entry, err := s.mgr.Query(name)
		if err != nil && errors.Is(err, errdefs.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		out := v1.CacheEntry{Name: name, UpdatedAt: metav1.NewTime(entry.UpdatedAt)}
		if entry.Err != nil {
			out.Error = entry.Err.Error()
		}
		if entry.Analog != nil {
			out.Analog = &v1.ValueRecord{
				Value: entry.Analog.Value, Raw: entry.Analog.Raw, Unit: entry.Analog.Unit,
				ValueType: string(entry.Analog.ValueType), Valid: entry.Analog.Valid,
				MinValid: entry.Analog.MinValid, MaxValid: entry.Analog.MaxValid,
			}
		}
		if entry.Digital != nil {
			out.Digital = &v1.DigitalRecord{State: entry.Digital.State}
		}
		if entry.Record != nil {
			out.Record = entry.Record
		}
		c.JSON(http.StatusOK, out)
	}
}

// createUnskipHandler clears one slave's skip state on the named port
// without reopening its transport. This and reload are the only two
// write operations this surface exposes: operator recovery actions,
// not end-user equipment commands.
//
// @Summary clear a slave's skip state
// @Produce json
// @Param name path string true "port name"
// @Param slave query int true "slave ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /v1/admin/ports/{name}/unskip [post]
func (s *Server) createUnskipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		slaveID, err := strconv.Atoi(c.Query("slave"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slave query parameter must be an integer"})
			return
		}

		if err := s.mgr.UnskipSlave(c.Request.Context(), name, slaveID); err != nil {
			if errors.Is(err, errdefs.ErrPortNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "unskipped"})
	}
}

// createReloadPortHandler stops and reopens the named port's transport.
//
// @Summary reopen a port's transport
// @Produce json
// @Param name path string true "port name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /v1/admin/ports/{name}/reload [post]
func (s *Server) createReloadPortHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := s.mgr.ReloadPort(c.Request.Context(), name); err != nil {
			if errors.Is(err, errdefs.ErrPortNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
	}
}
