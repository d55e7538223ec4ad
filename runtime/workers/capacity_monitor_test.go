package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestCapacityMonitor_Sample_And_Handle(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	events := make(chan int, 4)
	events <- 1
	events <- 2
	events <- 3

	monitor := NewCapacityMonitor(log, time.Second, 1, ChannelProbe{
		Name: "events", Length: func() int { return len(events) }, Capacity: cap(events),
	})

	// When the channel holds 3 of 4
	samples := monitor.Sample()

	// Then it is reported as running low
	req.Equal([]ChannelCapacity{{ChannelName: "events", Capacity: 4, Length: 3}}, samples)
	req.True(monitor.Handle(samples[0]))

	// And an emptier or unbuffered channel is not
	req.False(monitor.Handle(ChannelCapacity{ChannelName: "events", Capacity: 4, Length: 1}))
	req.False(monitor.Handle(ChannelCapacity{ChannelName: "unbuffered"}))
}

func TestCapacityMonitor_Run_Stops_With_Context(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := NewCapacityMonitor(log, 5*time.Millisecond, 1, ChannelProbe{
		Name: "events", Length: func() int { return 0 }, Capacity: 1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, monitor.Run(ctx))
}
