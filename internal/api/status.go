package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatusResponse describes the running agent.
type StatusResponse struct {
	Endpoint      string         `json:"endpoint"`
	Version       string         `json:"version"`
	StartedAt     string         `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Objects       int            `json:"objects"`
	Instances     int            `json:"instances"`
	Runtime       RuntimeMetrics `json:"runtime"`
}

// RuntimeMetrics are Go runtime figures. Counters live on /metrics.
type RuntimeMetrics struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	objs := s.engine.Objects()
	instances := 0
	for _, obj := range objs {
		instances += len(obj.Instances())
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Endpoint:      s.endpoint,
		Version:       s.version,
		StartedAt:     s.startTime.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Objects:       len(objs),
		Instances:     instances,
		Runtime: RuntimeMetrics{
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: mem.HeapAlloc,
			NumGC:          mem.NumGC,
		},
	})
}
