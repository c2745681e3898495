package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the /api/v1/metrics response.
type SystemMetrics struct {
	Timestamp     string                     `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeMetrics             `json:"runtime"`
	Gateway       *GatewayMetrics            `json:"gateway,omitempty"`
	Receivers     map[string]ReceiverMetrics `json:"receivers,omitempty"`
	Database      *DatabaseMetrics           `json:"database,omitempty"`
	Counters      map[string]uint64          `json:"counters,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// GatewayMetrics summarises the gateway snapshot.
type GatewayMetrics struct {
	UptimeSeconds int64          `json:"uptime_seconds"`
	Listeners     int            `json:"listeners"`
	Connections   map[string]int `json:"connections"`
}

// ReceiverMetrics contains one receiver session's counters.
type ReceiverMetrics struct {
	Sent        uint64 `json:"sent"`
	Received    uint64 `json:"received"`
	Discarded   uint64 `json:"discarded"`
	WriteErrors uint64 `json:"write_errors"`
	Queued      int    `json:"queued"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, gateway and storage metrics. Gateway
// sections are omitted if the loop does not answer in time.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := time.Now()
	metrics := SystemMetrics{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if snap, err := s.snapshot(r); err != nil {
		s.logger.Warn("metrics: gateway snapshot failed", "error", err)
	} else {
		gm := &GatewayMetrics{
			UptimeSeconds: int64(now.Sub(snap.Started).Seconds()),
			Listeners:     len(snap.Listeners),
			Connections:   make(map[string]int),
		}
		for _, c := range snap.Connections {
			gm.Connections[c.Transport]++
		}
		metrics.Gateway = gm

		metrics.Receivers = make(map[string]ReceiverMetrics, len(snap.Receivers))
		for _, rs := range snap.Receivers {
			metrics.Receivers[rs.Name] = ReceiverMetrics{
				Sent:        rs.Stats.Sent,
				Received:    rs.Stats.Received,
				Discarded:   rs.Stats.Discarded,
				WriteErrors: rs.Stats.WriteErrors,
				Queued:      len(rs.Queue),
			}
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if len(s.counters) > 0 {
		metrics.Counters = make(map[string]uint64, len(s.counters))
		for name, fn := range s.counters {
			metrics.Counters[name] = fn()
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
