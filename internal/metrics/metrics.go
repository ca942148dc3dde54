package metrics

import (
	"math"
	"sync"
	"time"
)

// Observation is one timed measurement against a metric name. Scope is the
// owning transaction name for scoped metrics and empty for rollups.
type Observation struct {
	Name      string
	Scope     string
	Duration  time.Duration
	Exclusive time.Duration
}

// Aggregator accepts batches of observations. Implementations must be safe
// for concurrent use.
type Aggregator interface {
	Merge(batch []Observation)
}

type discard struct{}

func (discard) Merge([]Observation) {}

// Discard drops every observation.
var Discard Aggregator = discard{}

// OrDiscard returns a, or Discard when a is nil.
func OrDiscard(a Aggregator) Aggregator {
	if a == nil {
		return Discard
	}
	return a
}

// Key identifies a metric bucket.
type Key struct {
	Name  string
	Scope string
}

// Stats is the merged state of one metric.
type Stats struct {
	CallCount  int64
	Total      time.Duration
	Exclusive  time.Duration
	Min        time.Duration
	Max        time.Duration
	SumSquares float64 // seconds squared
}

// Observe folds a single measurement into s.
func (s *Stats) Observe(duration, exclusive time.Duration) {
	if s.CallCount == 0 || duration < s.Min {
		s.Min = duration
	}
	if duration > s.Max {
		s.Max = duration
	}
	s.CallCount++
	s.Total += duration
	s.Exclusive += exclusive
	secs := duration.Seconds()
	s.SumSquares += secs * secs
}

// Merge folds other into s. Merge is commutative and associative.
func (s *Stats) Merge(other Stats) {
	if other.CallCount == 0 {
		return
	}
	if s.CallCount == 0 || other.Min < s.Min {
		s.Min = other.Min
	}
	if other.Max > s.Max {
		s.Max = other.Max
	}
	s.CallCount += other.CallCount
	s.Total += other.Total
	s.Exclusive += other.Exclusive
	s.SumSquares += other.SumSquares
}

// Mean returns the average duration.
func (s Stats) Mean() time.Duration {
	if s.CallCount == 0 {
		return 0
	}
	return s.Total / time.Duration(s.CallCount)
}

// StdDev returns the population standard deviation in seconds.
func (s Stats) StdDev() float64 {
	if s.CallCount == 0 {
		return 0
	}
	n := float64(s.CallCount)
	mean := s.Total.Seconds() / n
	variance := s.SumSquares/n - mean*mean
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

type bucket struct {
	mu    sync.Mutex
	stats Stats
}

// Table is a concurrent in-memory Aggregator.
type Table struct {
	mu      sync.RWMutex // guards swapping buckets; merges hold it shared
	buckets *sync.Map    // Key -> *bucket
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{buckets: &sync.Map{}}
}

// Merge records every observation in batch.
func (t *Table) Merge(batch []Observation) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, obs := range batch {
		if obs.Name == "" {
			continue
		}
		b := t.bucketFor(Key{Name: obs.Name, Scope: obs.Scope})
		b.mu.Lock()
		b.stats.Observe(obs.Duration, obs.Exclusive)
		b.mu.Unlock()
	}
}

func (t *Table) bucketFor(k Key) *bucket {
	if b, ok := t.buckets.Load(k); ok {
		return b.(*bucket)
	}
	b, _ := t.buckets.LoadOrStore(k, &bucket{})
	return b.(*bucket)
}

// Snapshot copies the current state without resetting it.
func (t *Table) Snapshot() map[Key]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return collect(t.buckets)
}

// Harvest returns the current state and starts a fresh table.
func (t *Table) Harvest() map[Key]Stats {
	t.mu.Lock()
	old := t.buckets
	t.buckets = &sync.Map{}
	t.mu.Unlock()

	return collect(old)
}

// Get returns the stats for one metric.
func (t *Table) Get(name, scope string) (Stats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.buckets.Load(Key{Name: name, Scope: scope})
	if !ok {
		return Stats{}, false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, true
}

func collect(m *sync.Map) map[Key]Stats {
	out := make(map[Key]Stats)
	m.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		out[k.(Key)] = b.stats
		b.mu.Unlock()
		return true
	})
	return out
}

// Recorder keeps every batch it is given.
type Recorder struct {
	mu      sync.Mutex
	batches [][]Observation
}

// Merge stores a copy of batch.
func (r *Recorder) Merge(batch []Observation) {
	cp := make([]Observation, len(batch))
	copy(cp, batch)

	r.mu.Lock()
	r.batches = append(r.batches, cp)
	r.mu.Unlock()
}

// Batches returns the recorded batches.
func (r *Recorder) Batches() [][]Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]Observation, len(r.batches))
	copy(out, r.batches)
	return out
}

// Names returns the metric names of every recorded observation, in order.
func (r *Recorder) Names() []string {
	var names []string
	for _, batch := range r.Batches() {
		for _, obs := range batch {
			names = append(names, obs.Name)
		}
	}
	return names
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.batches = nil
	r.mu.Unlock()
}
