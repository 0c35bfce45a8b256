package backfill

import "time"

type batchSample struct {
	blocks   uint64
	duration time.Duration
}

// etaEstimator averages the walk speed over the last few batches.
type etaEstimator struct {
	window  int
	samples []batchSample
}

func newETAEstimator(window int) *etaEstimator {
	if window < 1 {
		window = 10
	}
	return &etaEstimator{window: window, samples: make([]batchSample, 0, window)}
}

func (e *etaEstimator) Record(blocks uint64, d time.Duration) {
	e.samples = append(e.samples, batchSample{blocks: blocks, duration: d})
	if len(e.samples) > e.window {
		e.samples = e.samples[1:]
	}
}

// Estimate returns the time left for remaining blocks, or 0 when there is
// no timing data yet.
func (e *etaEstimator) Estimate(remaining uint64) time.Duration {
	var blocks uint64
	var total time.Duration
	for _, s := range e.samples {
		blocks += s.blocks
		total += s.duration
	}
	if blocks == 0 || total <= 0 {
		return 0
	}
	perBlock := float64(total) / float64(blocks)
	return time.Duration(perBlock * float64(remaining)).Round(time.Second)
}
