package expressions

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/load"
)

const loadSampleInterval = 15 * time.Second

// loadSampler keeps the most recent host load average. It starts sampling
// the first time a flag asks for it.
type loadSampler struct {
	start  sync.Once
	latest atomic.Pointer[load.AvgStat]
}

var hostLoad loadSampler

func (ls *loadSampler) sample() {
	avg, err := load.Avg()
	if err != nil {
		slog.Debug("can't get load average", "err", err)
		return
	}
	ls.latest.Store(avg)
}

func (ls *loadSampler) run() {
	for range time.Tick(loadSampleInterval) {
		ls.sample()
	}
}

// Load1 returns the one-minute host load average. It is zero until the
// first sample lands and on platforms that don't report load.
func Load1() float64 {
	hostLoad.start.Do(func() {
		hostLoad.sample()
		go hostLoad.run()
	})

	avg := hostLoad.latest.Load()
	if avg == nil {
		return 0
	}
	return avg.Load1
}
