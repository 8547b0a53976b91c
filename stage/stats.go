package stage

import (
	"sync"
	"time"
)

// maxDiagnostics bounds the number of retained diagnostics.
const maxDiagnostics = 256

// Diagnostic records one recoverable inference failure.
type Diagnostic struct {
	Frame uint64 // frame index within the stream
	Pos   int64  // source position of the frame
	Err   error
	Time  time.Time
}

// Stats contains per-stage processing counters.
type Stats struct {
	FramesProcessed   uint64
	FramesCopied      uint64 // frames that needed a new output buffer
	Inferences        uint64
	InferenceFailures uint64
	Timeouts          uint64
	TotalInferTime    time.Duration
	LastInferTime     time.Duration
	LastFrameTime     time.Time
}

// AverageInferTime returns the mean duration of successful inferences.
func (s Stats) AverageInferTime() time.Duration {
	ok := s.Inferences - s.InferenceFailures
	if ok == 0 {
		return 0
	}
	return s.TotalInferTime / time.Duration(ok)
}

// statsRecorder guards Stats and the diagnostic log. The stage runs on one
// goroutine, but readers may poll from others.
type statsRecorder struct {
	mu          sync.RWMutex
	stats       Stats
	diagnostics []Diagnostic
}

func (r *statsRecorder) frame(copied bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.FramesProcessed++
	if copied {
		r.stats.FramesCopied++
	}
	r.stats.LastFrameTime = at
}

func (r *statsRecorder) inference(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Inferences++
	r.stats.TotalInferTime += d
	r.stats.LastInferTime = d
}

func (r *statsRecorder) failure(diag Diagnostic, timeout bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Inferences++
	r.stats.InferenceFailures++
	if timeout {
		r.stats.Timeouts++
	}
	if len(r.diagnostics) == maxDiagnostics {
		r.diagnostics = append(r.diagnostics[:0], r.diagnostics[1:]...)
	}
	r.diagnostics = append(r.diagnostics, diag)
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *statsRecorder) diagnosticLog() []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}
