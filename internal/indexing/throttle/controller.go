package throttle

import "fmt"

// BatchState is the adaptive batch size and the history it is derived from.
// It is a value: transitions return a new state and never mutate the receiver.
//
// Growth doubles the size but stays strictly below the last size the provider
// rejected. Shrinking bisects toward the last accepted size, or halves when
// there is no accepted size yet, when the bisection would not shrink, or when
// the same size failed twice in a row.
type BatchState struct {
	Size                int
	Min                 int
	Max                 int
	LastSuccess         int // 0 until the first success
	LastFailed          int // 0 until the first failure
	ConsecutiveFailures int // failures in a row at LastFailed
}

// NewBatchState returns the starting state, with the initial size clamped
// into [Min, Max].
func NewBatchState(cfg Config) BatchState {
	cfg = cfg.normalize()
	return BatchState{
		Size: clamp(cfg.InitialBatchSize, cfg.MinBatchSize, cfg.MaxBatchSize),
		Min:  cfg.MinBatchSize,
		Max:  cfg.MaxBatchSize,
	}
}

// OnSuccess returns the state after the provider accepted a batch of s.Size blocks.
func (s BatchState) OnSuccess() BatchState {
	next := s
	next.ConsecutiveFailures = 0
	next.LastSuccess = s.Size

	size := s.Size * 2
	if s.LastFailed > 0 && size > s.LastFailed-1 {
		size = s.LastFailed - 1
	}
	next.Size = clamp(size, s.Min, s.Max)
	return next
}

// OnFailure returns the state after the provider rejected a batch of
// s.Size blocks for capacity.
func (s BatchState) OnFailure() BatchState {
	next := s
	if s.LastFailed == s.Size {
		next.ConsecutiveFailures++
	} else {
		next.ConsecutiveFailures = 1
	}
	next.LastFailed = s.Size

	var size int
	switch {
	case next.ConsecutiveFailures >= 2:
		size = s.Size / 2
		next.ConsecutiveFailures = 0
	case s.LastSuccess > 0:
		size = (s.LastSuccess + s.Size) / 2
		if size >= s.Size {
			size = s.Size / 2
		}
	default:
		size = s.Size / 2
	}
	next.Size = clamp(size, s.Min, s.Max)
	return next
}

// AtMin reports whether the size cannot shrink any further.
func (s BatchState) AtMin() bool {
	return s.Size <= s.Min
}

func (s BatchState) String() string {
	return fmt.Sprintf("size=%d [%d,%d] lastSuccess=%d lastFailed=%d consecutive=%d",
		s.Size, s.Min, s.Max, s.LastSuccess, s.LastFailed, s.ConsecutiveFailures)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
