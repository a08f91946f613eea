package transfer

import (
	"sync"
	"time"
)

// RateWindow is how far back RateTracker looks when computing the current rate.
const RateWindow = 10 * time.Second

// Progress is the executor's view of a running transfer, published by value after every
// chunk. For one file the byte counts never decrease and the last report for that file has
// BytesSentCurrentFile == BytesTotalCurrentFile.
type Progress struct {
	CurrentTask           int
	CurrentPath           string
	BytesSentCurrentFile  uint64
	BytesTotalCurrentFile uint64
	FilesDone             int
	FilesTotal            int
	BytesDoneTotal        uint64
	BytesTotalOverall     uint64
}

// ProgressFunc receives progress reports.
type ProgressFunc func(Progress)

// Snapshot is a progress report reduced to display fractions.
type Snapshot struct {
	Progress

	// OverallFraction and CurrentFileFraction are in [0, 1].
	OverallFraction     float64
	CurrentFileFraction float64
}

// Aggregate computes the display fractions for p.
// A zero-byte file counts as complete as soon as it is current, and a plan whose files
// carry no bytes at all is measured by files done instead.
func Aggregate(p Progress) Snapshot {
	snapshot := Snapshot{Progress: p}

	switch {
	case p.CurrentPath == "":
		snapshot.CurrentFileFraction = 0
	case p.BytesTotalCurrentFile == 0:
		snapshot.CurrentFileFraction = 1
	default:
		snapshot.CurrentFileFraction = fraction(p.BytesSentCurrentFile, p.BytesTotalCurrentFile)
	}

	if p.BytesTotalOverall == 0 {
		if p.FilesTotal == 0 || p.FilesDone >= p.FilesTotal {
			snapshot.OverallFraction = 1
		} else {
			snapshot.OverallFraction = fraction(uint64(p.FilesDone), uint64(p.FilesTotal)) //nolint:gosec // counts are non-negative
		}

		return snapshot
	}

	snapshot.OverallFraction = fraction(p.BytesDoneTotal, p.BytesTotalOverall)

	return snapshot
}

func fraction(done, total uint64) float64 {
	if total == 0 {
		total = 1
	}

	f := float64(done) / float64(total)

	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// rateSample is a point-in-time reading of the transfer's byte counter.
type rateSample struct {
	Timestamp time.Time
	Bytes     uint64
}

// RateTracker turns successive byte counts into a transfer rate and ETA.
// The rate uses samples from the last RateWindow and falls back to the cumulative rate
// since the first observation when the window holds a single sample.
type RateTracker struct {
	mu      sync.Mutex
	clock   TimeProvider
	start   *rateSample
	samples []rateSample
}

// NewRateTracker creates a tracker; a nil clock uses real time.
func NewRateTracker(clock TimeProvider) *RateTracker {
	if clock == nil {
		clock = RealTimeProvider{}
	}

	return &RateTracker{clock: clock}
}

// Observe records the total bytes done so far.
func (r *RateTracker) Observe(bytesDone uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample := rateSample{Timestamp: r.clock.Now(), Bytes: bytesDone}

	if r.start == nil {
		first := sample
		r.start = &first
	}

	r.samples = append(r.samples, sample)

	// Prune samples older than the window
	cutoff := sample.Timestamp.Add(-RateWindow)
	filtered := r.samples[:0]

	for _, s := range r.samples {
		if !s.Timestamp.Before(cutoff) {
			filtered = append(filtered, s)
		}
	}

	r.samples = filtered
}

// Rate returns bytes per second.
func (r *RateTracker) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rateLocked()
}

// ETA estimates the time left to reach totalBytes. Zero when the rate is unknown.
func (r *RateTracker) ETA(totalBytes uint64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	rate := r.rateLocked()
	if rate <= 0 || len(r.samples) == 0 {
		return 0
	}

	done := r.samples[len(r.samples)-1].Bytes
	if done >= totalBytes {
		return 0
	}

	return time.Duration(float64(totalBytes-done) / rate * float64(time.Second))
}

// Elapsed returns the time since the first observation.
func (r *RateTracker) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.start == nil {
		return 0
	}

	return r.clock.Now().Sub(r.start.Timestamp)
}

func (r *RateTracker) rateLocked() float64 {
	if len(r.samples) == 0 {
		return 0
	}

	last := r.samples[len(r.samples)-1]
	first := r.samples[0]

	if len(r.samples) == 1 {
		first = *r.start
	}

	elapsed := last.Timestamp.Sub(first.Timestamp)
	if elapsed <= 0 || last.Bytes < first.Bytes {
		return 0
	}

	return float64(last.Bytes-first.Bytes) / elapsed.Seconds()
}
