package vidpipe

import (
	"go.uber.org/atomic"
)

// SessionStatistics are the live counters of a session; incremented
// internally, snapshot via Convert.
type SessionStatistics struct {
	PacketsSubmitted  atomic.Uint64
	FramesDecoded     atomic.Uint64
	Resubmits         atomic.Uint64
	Resizes           atomic.Uint64
	EmptyStreamErrors atomic.Uint64
	BytesIn           atomic.Uint64
	BytesOut          atomic.Uint64
}

// Statistics is a plain snapshot of SessionStatistics.
type Statistics struct {
	PacketsSubmitted  uint64
	FramesDecoded     uint64
	Resubmits         uint64
	Resizes           uint64
	EmptyStreamErrors uint64
	BytesIn           uint64
	BytesOut          uint64
}

func (stats *SessionStatistics) Convert() Statistics {
	return Statistics{
		PacketsSubmitted:  stats.PacketsSubmitted.Load(),
		FramesDecoded:     stats.FramesDecoded.Load(),
		Resubmits:         stats.Resubmits.Load(),
		Resizes:           stats.Resizes.Load(),
		EmptyStreamErrors: stats.EmptyStreamErrors.Load(),
		BytesIn:           stats.BytesIn.Load(),
		BytesOut:          stats.BytesOut.Load(),
	}
}
