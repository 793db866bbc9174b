package server

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthResponse reports liveness and a few process figures.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	History     int    `json:"history"`
	Uptime      string `json:"uptime"`
	RSSBytes    uint64 `json:"rss_bytes,omitempty"`
}

// Health reports connection and history counts with the process RSS.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	room := h.hub.Room()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: room.Presence.Len(),
		History:     room.History.Len(),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		RSSBytes:    h.residentMemory(),
	})
}

func (h *Handlers) residentMemory() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		h.log.Debug("Failed to inspect process", "err", err)
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		h.log.Debug("Failed to collect memory stats", "err", err)
		return 0
	}
	return mem.RSS
}
