package workers

import (
	"context"
	"log/slog"
	"time"
)

// ChannelProbe exposes the fill level of one buffered channel.
type ChannelProbe struct {
	Name     string
	Length   func() int
	Capacity int
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

// CapacityMonitor periodically samples buffered channels and warns when one
// is close to full, which is where backpressure on writers starts.
type CapacityMonitor struct {
	log                  *slog.Logger
	interval             time.Duration
	lowCapacityThreshold int
	probes               []ChannelProbe
}

func NewCapacityMonitor(log *slog.Logger, interval time.Duration, lowCapacityThreshold int,
	probes ...ChannelProbe) *CapacityMonitor {
	return &CapacityMonitor{log: log, interval: interval, lowCapacityThreshold: lowCapacityThreshold, probes: probes}
}

func (w CapacityMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, capacity := range w.Sample() {
				w.Handle(capacity)
			}
		}
	}
}

func (w CapacityMonitor) Sample() []ChannelCapacity {
	samples := make([]ChannelCapacity, 0, len(w.probes))
	for _, probe := range w.probes {
		samples = append(samples, ChannelCapacity{
			ChannelName: probe.Name,
			Capacity:    probe.Capacity,
			Length:      probe.Length(),
		})
	}
	return samples
}

// Handle reports whether the channel is running low on capacity.
func (w CapacityMonitor) Handle(c ChannelCapacity) bool {
	w.log.Debug("Channel usage", "channel", c.ChannelName, "length", c.Length, "capacity", c.Capacity)
	if c.Capacity <= 0 {
		// In case of unbuffered channel
		return false
	}
	capacityLeft := c.Capacity - c.Length
	if capacityLeft <= w.lowCapacityThreshold {
		w.log.Warn("Channel capacity running low",
			"channel", c.ChannelName, "capacity_left", capacityLeft, "capacity", c.Capacity)
		return true
	}
	return false
}
