package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/process"
)

// statser is the slice of the registry the heartbeat needs.
type statser interface {
	Stats() (sessions, users int)
}

// GatewayStatus is published on the heartbeat subject for monitoring.
type GatewayStatus struct {
	Pid          int     `json:"pid"`
	PidStatus    string  `json:"pidStatus"`
	CpuPercent   float64 `json:"cpuPercent"`
	RamBytes     uint64  `json:"ramBytes"`
	LiveSessions int     `json:"liveSessions"`
	OnlineUsers  int     `json:"onlineUsers"`
	At           int64   `json:"at"`
}

// HeartbeatWorker periodically publishes process health and registry counts.
type HeartbeatWorker struct {
	log      *slog.Logger
	nc       *nats.Conn
	registry statser
	subject  string
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, nc *nats.Conn, registry statser,
	subject string, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, nc: nc, registry: registry, subject: subject, interval: interval}
}

// Run sends health metrics (CPU, RAM, status, session counts) on every tick.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting gateway heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			sessions, users := w.registry.Stats()
			payload, err := json.Marshal(GatewayStatus{
				Pid:          os.Getpid(),
				PidStatus:    status,
				CpuPercent:   cpu,
				RamBytes:     rss,
				LiveSessions: sessions,
				OnlineUsers:  users,
				At:           time.Now().UTC().UnixNano(),
			})
			if err != nil {
				continue
			}

			if err := w.nc.Publish(w.subject, payload); err != nil {
				w.log.Warn("Heartbeat publish failed", "err", err)
			}
		}
	}
}

// selfStats retrieves memory, CPU, and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
