package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/aploc/common"
)

// tickScanMeter logs read throughput every interval while a scan is running.
type tickScanMeter struct {
	mu         sync.Mutex
	label      time.Time // any value, eg record time
	interval   time.Duration
	started    time.Time
	ticker     *time.Ticker
	done       chan struct{}
	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

func newTickScanMeter(interval time.Duration) *tickScanMeter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	rl := &tickScanMeter{
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}

	for name, m := range map[string]interface{}{
		"count.count": rl.count,
		"size.count":  rl.size,
		"line.meter":  rl.countMeter,
		"size.meter":  rl.sizeMeter,
	} {
		if err := reg.Register(name, m); err != nil {
			slog.Warn("Failed to register scan meter", "name", name, "error", err)
		}
	}
	rl.ticker = time.NewTicker(rl.interval)
	go rl.run()
	return rl
}

func (rl *tickScanMeter) mark(label time.Time, data []byte) {
	rl.mu.Lock()
	if !label.IsZero() {
		rl.label = label
	}
	rl.mu.Unlock()
	rl.count.Inc(1)
	rl.size.Inc(int64(len(data)))
	rl.countMeter.Mark(1)
	rl.sizeMeter.Mark(int64(len(data)))
}

func (rl *tickScanMeter) run() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.ticker.C:
			rl.log()
		}
	}
}

func (rl *tickScanMeter) log() {
	countSnap := rl.countMeter.Snapshot()
	sizeSnap := rl.sizeMeter.Snapshot()
	rl.mu.Lock()
	label := rl.label
	rl.mu.Unlock()

	slog.Info("Read records", "n", humanize.Comma(countSnap.Count()),
		"read.last", label.Format(time.DateTime),
		"rps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(rl.started).Round(time.Second))
}

// total returns the number of records marked so far.
func (rl *tickScanMeter) total() int64 {
	return rl.count.Snapshot().Count()
}

func (rl *tickScanMeter) stop() {
	if rl == nil || rl.ticker == nil {
		return
	}
	rl.ticker.Stop()
	close(rl.done)
	rl.countMeter.Stop()
	rl.sizeMeter.Stop()
}
